// Package config loads the server configuration from YAML with sensible
// defaults for anything left unset.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Execution ExecutionConfig `yaml:"execution"`
	Detector  DetectorConfig  `yaml:"detector"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds the API token credential. TokenHash is a bcrypt hash of
// the expected bearer token; an empty hash disables authentication.
type AuthConfig struct {
	TokenHash string `yaml:"token_hash"`
}

// WorkspaceConfig describes the observed workspace.
type WorkspaceConfig struct {
	Roots           []string       `yaml:"roots"`
	ExcludeGlobs    []string       `yaml:"exclude_globs"`
	WatchedSettings []string       `yaml:"watched_settings"`
	Settings        map[string]any `yaml:"settings"`
	MaxFileSize     int64          `yaml:"max_file_size"`
	MaxDepth        int            `yaml:"max_depth"`
}

// ExecutionConfig bounds execution attempts.
type ExecutionConfig struct {
	DefaultTimeoutMS int `yaml:"default_timeout_ms"`
	MaxTimeoutMS     int `yaml:"max_timeout_ms"`
	MaxSideEffects   int `yaml:"max_side_effects"`
}

// DetectorConfig tunes live monitoring.
type DetectorConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
}

// DefaultTimeout returns the default execution timeout as a duration.
func (c *ExecutionConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMS) * time.Millisecond
}

// MaxTimeout returns the execution timeout ceiling as a duration.
func (c *ExecutionConfig) MaxTimeout() time.Duration {
	return time.Duration(c.MaxTimeoutMS) * time.Millisecond
}

// PollInterval returns the watcher poll interval as a duration.
func (c *DetectorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Load reads the configuration from path. A missing or empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	setDefaults(&cfg)
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/cmdprobe.db"
	}
	if len(cfg.Workspace.Roots) == 0 {
		if wd, err := os.Getwd(); err == nil {
			cfg.Workspace.Roots = []string{wd}
		}
	}
	if len(cfg.Workspace.ExcludeGlobs) == 0 {
		cfg.Workspace.ExcludeGlobs = []string{
			".git", "node_modules", "vendor", "dist", "build",
			"target", "__pycache__", "*.log", ".DS_Store",
		}
	}
	if cfg.Workspace.MaxFileSize == 0 {
		cfg.Workspace.MaxFileSize = 1 << 20
	}
	if cfg.Workspace.MaxDepth == 0 {
		cfg.Workspace.MaxDepth = 10
	}
	if cfg.Execution.DefaultTimeoutMS == 0 {
		cfg.Execution.DefaultTimeoutMS = 30000
	}
	if cfg.Execution.MaxTimeoutMS == 0 {
		cfg.Execution.MaxTimeoutMS = 300000
	}
	if cfg.Execution.MaxSideEffects == 0 {
		cfg.Execution.MaxSideEffects = 1000
	}
	if cfg.Detector.PollIntervalMS == 0 {
		cfg.Detector.PollIntervalMS = 2000
	}
}
