// Package handlers exposes the engine over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
	"github.com/pandeptwidyaop/cmdprobe/internal/registry"
	"github.com/pandeptwidyaop/cmdprobe/internal/validation"
)

// ValidateHandler handles parameter validation requests.
type ValidateHandler struct {
	validator *validation.Validator
	commands  *registry.Store
}

// NewValidateHandler creates a new ValidateHandler instance.
func NewValidateHandler(validator *validation.Validator, commands *registry.Store) *ValidateHandler {
	return &ValidateHandler{validator: validator, commands: commands}
}

// ValidateRequest carries an ad hoc signature and value map.
type ValidateRequest struct {
	Signature []models.ParameterSpec `json:"signature"`
	Values    map[string]any         `json:"values"`
}

// Validate validates a value map against a signature supplied in the
// request body.
func (h *ValidateHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := h.validator.Validate(req.Signature, req.Values)
	c.JSON(http.StatusOK, outcome)
}

// ValidateCommand validates a value map against a registered command's
// declared signature.
func (h *ValidateHandler) ValidateCommand(c *gin.Context) {
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

	var req struct {
		Values map[string]any `json:"values"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := h.validator.Validate(desc.Signature, req.Values)
	c.JSON(http.StatusOK, outcome)
}
