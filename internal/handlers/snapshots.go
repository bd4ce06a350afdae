package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/cmdprobe/internal/executor"
	"github.com/pandeptwidyaop/cmdprobe/internal/services"
)

// SnapshotHandler handles workspace snapshot operations.
type SnapshotHandler struct {
	exec  *executor.Executor
	audit *services.AuditService
}

// NewSnapshotHandler creates a new SnapshotHandler instance.
func NewSnapshotHandler(exec *executor.Executor, audit *services.AuditService) *SnapshotHandler {
	return &SnapshotHandler{exec: exec, audit: audit}
}

// Create captures a snapshot of the current workspace state.
func (h *SnapshotHandler) Create(c *gin.Context) {
	snap, err := h.exec.CreateSnapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// List returns the stored snapshots, oldest first.
func (h *SnapshotHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.exec.ListSnapshots())
}

// Get returns one snapshot by id.
func (h *SnapshotHandler) Get(c *gin.Context) {
	snap, err := h.exec.Snapshot(c.Param("id"))
	if err != nil {
		if errors.Is(err, executor.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Restore replays a snapshot's document state onto the workspace.
func (h *SnapshotHandler) Restore(c *gin.Context) {
	id := c.Param("id")
	if err := h.exec.RestoreSnapshot(id); err != nil {
		if errors.Is(err, executor.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.audit.LogSnapshotRestore(id)
	c.JSON(http.StatusOK, gin.H{"message": "snapshot restored"})
}

// Delete removes a stored snapshot.
func (h *SnapshotHandler) Delete(c *gin.Context) {
	if err := h.exec.DeleteSnapshot(c.Param("id")); err != nil {
		if errors.Is(err, executor.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "snapshot deleted"})
}

// Clear drops all stored snapshots.
func (h *SnapshotHandler) Clear(c *gin.Context) {
	h.exec.ClearAllSnapshots()
	c.JSON(http.StatusOK, gin.H{"message": "all snapshots cleared"})
}
