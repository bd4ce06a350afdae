package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/cmdprobe/internal/config"
	"github.com/pandeptwidyaop/cmdprobe/internal/executor"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
	"github.com/pandeptwidyaop/cmdprobe/internal/registry"
	"github.com/pandeptwidyaop/cmdprobe/internal/services"
)

// ExecuteHandler handles command execution requests.
type ExecuteHandler struct {
	exec     *executor.Executor
	commands *registry.Store
	audit    *services.AuditService
	cfg      *config.ExecutionConfig
}

// NewExecuteHandler creates a new ExecuteHandler instance.
func NewExecuteHandler(exec *executor.Executor, commands *registry.Store, audit *services.AuditService, cfg *config.ExecutionConfig) *ExecuteHandler {
	return &ExecuteHandler{exec: exec, commands: commands, audit: audit, cfg: cfg}
}

// ExecuteRequest carries the per-attempt inputs.
type ExecuteRequest struct {
	Parameters     map[string]any `json:"parameters"`
	TimeoutMS      int            `json:"timeout_ms"`
	CreateSnapshot bool           `json:"create_snapshot"`
	Confirm        bool           `json:"confirm"`
	CaptureResult  bool           `json:"capture_result"`
	Notes          string         `json:"notes"`
}

// Execute runs one attempt for a registered command and returns the
// structured result.
func (h *ExecuteHandler) Execute(c *gin.Context) {
	id := c.Param("id")

	desc, err := h.commands.Get(id)
	if err != nil {
		if errors.Is(err, registry.ErrCommandNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = h.cfg.DefaultTimeout()
	}
	if timeout > h.cfg.MaxTimeout() {
		timeout = h.cfg.MaxTimeout()
	}

	ec := models.ExecutionContext{
		Descriptor:     desc,
		Parameters:     req.Parameters,
		Timeout:        timeout,
		CreateSnapshot: req.CreateSnapshot,
		Confirmed:      req.Confirm,
	}

	result, err := h.exec.Execute(c.Request.Context(), ec, req.CaptureResult, req.Notes)
	if err != nil {
		h.writeExecuteError(c, err)
		return
	}

	h.audit.LogExecute(desc.ID, desc.Name, result.Success)
	c.JSON(http.StatusOK, result)
}

// writeExecuteError maps pre-invocation failures to HTTP statuses with a
// machine-readable code.
func (h *ExecuteHandler) writeExecuteError(c *gin.Context, err error) {
	var valErr *executor.ValidationError
	var preErr *executor.PreconditionError

	switch {
	case errors.Is(err, executor.ErrExecutionInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "execution_in_progress"})
	case errors.Is(err, executor.ErrConfirmationRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "confirmation_required"})
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   valErr.Error(),
			"code":    "validation_failed",
			"outcome": valErr.Outcome,
		})
	case errors.As(err, &preErr):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": preErr.Error(), "code": "precondition_failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "internal_error"})
	}
}
