// Package main is the entry point for the cmdprobe server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pandeptwidyaop/cmdprobe/internal/analysis"
	"github.com/pandeptwidyaop/cmdprobe/internal/config"
	"github.com/pandeptwidyaop/cmdprobe/internal/database"
	"github.com/pandeptwidyaop/cmdprobe/internal/detector"
	"github.com/pandeptwidyaop/cmdprobe/internal/executor"
	"github.com/pandeptwidyaop/cmdprobe/internal/host"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
	"github.com/pandeptwidyaop/cmdprobe/internal/registry"
	"github.com/pandeptwidyaop/cmdprobe/internal/router"
	"github.com/pandeptwidyaop/cmdprobe/internal/services"
	"github.com/pandeptwidyaop/cmdprobe/internal/validation"
	"github.com/pandeptwidyaop/cmdprobe/internal/version"
)

// envProber adapts the host environment to the validator's existence probe.
type envProber struct {
	env host.Environment
}

func (p *envProber) Exists(loc models.Locator) bool {
	_, err := p.env.Stat(loc.Path)
	return err == nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cmdprobe %s\n", version.Version)
		fmt.Printf("Build Time: %s\n", version.BuildTime)
		fmt.Printf("Git Commit: %s\n", version.GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Warning: Could not load config from %s: %v", *configPath, err)
		log.Println("Using default configuration...")
		cfg, _ = config.Load("")
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	env := host.NewLocalEnvironment(host.Options{
		Roots:        cfg.Workspace.Roots,
		Settings:     cfg.Workspace.Settings,
		ExcludeGlobs: cfg.Workspace.ExcludeGlobs,
		PollInterval: cfg.Detector.PollInterval(),
		MaxDepth:     cfg.Workspace.MaxDepth,
	})

	commands := registry.NewStore(db)
	workDir := ""
	if len(cfg.Workspace.Roots) > 0 {
		workDir = cfg.Workspace.Roots[0]
	}
	env.SetInvoker(registry.NewShellInvoker(commands, workDir))

	det := detector.New(env, detector.Config{
		ExcludeGlobs:    cfg.Workspace.ExcludeGlobs,
		WatchedSettings: cfg.Workspace.WatchedSettings,
		MaxFileSize:     cfg.Workspace.MaxFileSize,
		MaxDepth:        cfg.Workspace.MaxDepth,
		MaxEffects:      cfg.Execution.MaxSideEffects,
	})
	defer det.Dispose()

	validator := validation.New(&envProber{env: env})
	sessions := analysis.NewSessionCollector(env, version.Version, cfg.Workspace.WatchedSettings)
	analyzer := analysis.NewAnalyzer(analysis.NewStore(db), sessions)
	exec := executor.New(env, validator, det, analyzer)
	audit := services.NewAuditService(db)

	env.StartWatcher()
	defer env.StopWatcher()

	if cfg.Auth.TokenHash == "" {
		log.Println("Warning: auth.token_hash is empty; API authentication is DISABLED")
	}

	r := router.New(cfg, router.Deps{
		Validator: validator,
		Executor:  exec,
		Detector:  det,
		Analyzer:  analyzer,
		Commands:  commands,
		Audit:     audit,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("cmdprobe %s listening on %s (workspace roots: %v)", version.Version, addr, cfg.Workspace.Roots)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
