package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
	"github.com/pandeptwidyaop/cmdprobe/internal/registry"
	"github.com/pandeptwidyaop/cmdprobe/internal/services"
)

// CommandHandler handles command registry CRUD.
type CommandHandler struct {
	commands *registry.Store
	audit    *services.AuditService
}

// NewCommandHandler creates a new CommandHandler instance.
func NewCommandHandler(commands *registry.Store, audit *services.AuditService) *CommandHandler {
	return &CommandHandler{commands: commands, audit: audit}
}

// List returns all registered commands.
func (h *CommandHandler) List(c *gin.Context) {
	commands, err := h.commands.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, commands)
}

// CreateCommandRequest carries a new command registration.
type CreateCommandRequest struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name" binding:"required"`
	Description   string                 `json:"description"`
	RiskTier      models.RiskTier        `json:"risk_tier"`
	Preconditions []models.Precondition  `json:"preconditions"`
	Signature     []models.ParameterSpec `json:"signature"`
	ShellTemplate string                 `json:"shell_template"`
}

// Create registers a new command.
func (h *CommandHandler) Create(c *gin.Context) {
	var req CreateCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	desc, err := h.commands.Create(&models.CommandDescriptor{
		ID:            req.ID,
		Name:          req.Name,
		Description:   req.Description,
		RiskTier:      req.RiskTier,
		Preconditions: req.Preconditions,
		Signature:     req.Signature,
		ShellTemplate: req.ShellTemplate,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogCommandChange("create", desc.ID, desc.Name)
	c.JSON(http.StatusCreated, desc)
}

// Get returns one registered command by id.
func (h *CommandHandler) Get(c *gin.Context) {
	desc, err := h.commands.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrCommandNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, desc)
}

// Update replaces a command's registry fields.
func (h *CommandHandler) Update(c *gin.Context) {
	var req registry.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	desc, err := h.commands.Update(c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, registry.ErrCommandNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogCommandChange("update", desc.ID, desc.Name)
	c.JSON(http.StatusOK, desc)
}

// Delete removes a command from the registry.
func (h *CommandHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	desc, err := h.commands.Get(id)
	if err != nil {
		desc = nil
	}

	if err := h.commands.Delete(id); err != nil {
		if errors.Is(err, registry.ErrCommandNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if desc != nil {
		h.audit.LogCommandChange("delete", desc.ID, desc.Name)
	}
	c.JSON(http.StatusOK, gin.H{"message": "command deleted"})
}
