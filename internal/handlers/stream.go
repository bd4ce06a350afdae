package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pandeptwidyaop/cmdprobe/internal/detector"
	"github.com/pandeptwidyaop/cmdprobe/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const pingInterval = 30 * time.Second

// StreamHandler streams live side effects over WebSocket as the detector
// records them.
type StreamHandler struct {
	detector *detector.Detector
}

// NewStreamHandler creates a new StreamHandler instance.
func NewStreamHandler(det *detector.Detector) *StreamHandler {
	return &StreamHandler{detector: det}
}

// Stream upgrades the connection and forwards live effects until the
// client disconnects or the subscription closes.
func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Stream] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := h.detector.Subscribe()
	defer h.detector.Unsubscribe(ch)

	// Drain client frames so close messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case effect, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(effect); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler creates a new AuditHandler instance.
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns audit entries with pagination.
func (h *AuditHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	logs, err := h.audit.GetLogs(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
