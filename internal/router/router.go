// Package router wires the HTTP API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/cmdprobe/internal/analysis"
	"github.com/pandeptwidyaop/cmdprobe/internal/config"
	"github.com/pandeptwidyaop/cmdprobe/internal/detector"
	"github.com/pandeptwidyaop/cmdprobe/internal/executor"
	"github.com/pandeptwidyaop/cmdprobe/internal/handlers"
	"github.com/pandeptwidyaop/cmdprobe/internal/middleware"
	"github.com/pandeptwidyaop/cmdprobe/internal/registry"
	"github.com/pandeptwidyaop/cmdprobe/internal/services"
	"github.com/pandeptwidyaop/cmdprobe/internal/validation"
	"github.com/pandeptwidyaop/cmdprobe/internal/version"
)

// Deps bundles the services the router exposes.
type Deps struct {
	Validator *validation.Validator
	Executor  *executor.Executor
	Detector  *detector.Detector
	Analyzer  *analysis.Analyzer
	Commands  *registry.Store
	Audit     *services.AuditService
}

// New builds the gin engine with all routes attached.
func New(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	validateHandler := handlers.NewValidateHandler(deps.Validator, deps.Commands)
	executeHandler := handlers.NewExecuteHandler(deps.Executor, deps.Commands, deps.Audit, &cfg.Execution)
	snapshotHandler := handlers.NewSnapshotHandler(deps.Executor, deps.Audit)
	resultsHandler := handlers.NewResultsHandler(deps.Analyzer)
	commandHandler := handlers.NewCommandHandler(deps.Commands, deps.Audit)
	streamHandler := handlers.NewStreamHandler(deps.Detector)
	auditHandler := handlers.NewAuditHandler(deps.Audit)

	api := r.Group("/api")
	{
		// Public version endpoint
		api.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Info())
		})

		protected := api.Group("")
		protected.Use(middleware.TokenAuth(cfg.Auth.TokenHash))
		{
			protected.POST("/validate", validateHandler.Validate)

			protected.GET("/commands", commandHandler.List)
			protected.POST("/commands", commandHandler.Create)
			protected.GET("/commands/:id", commandHandler.Get)
			protected.PUT("/commands/:id", commandHandler.Update)
			protected.DELETE("/commands/:id", commandHandler.Delete)
			protected.POST("/commands/:id/validate", validateHandler.ValidateCommand)
			protected.POST("/commands/:id/execute", executeHandler.Execute)

			protected.POST("/snapshots", snapshotHandler.Create)
			protected.GET("/snapshots", snapshotHandler.List)
			protected.GET("/snapshots/:id", snapshotHandler.Get)
			protected.POST("/snapshots/:id/restore", snapshotHandler.Restore)
			protected.DELETE("/snapshots/:id", snapshotHandler.Delete)
			protected.DELETE("/snapshots", snapshotHandler.Clear)

			protected.GET("/results", resultsHandler.Search)
			protected.GET("/results/statistics", resultsHandler.Statistics)
			protected.GET("/results/export", resultsHandler.Export)
			protected.GET("/results/:id", resultsHandler.Get)

			protected.GET("/effects/stream", streamHandler.Stream)
			protected.GET("/audit", auditHandler.List)
		}
	}

	return r
}
