package app

import (
	"io"
	"log/slog"

	"github.com/vk/pipegrid/internal/nodes"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *nodes.Registry
	config   *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and node kind
// registry.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:     outW,
		logger:   logger,
		registry: nodes.NewRegistry(),
		config:   cfg,
	}
}

// Registry returns the application's node kind registry. This is
// primarily for testing.
func (a *App) Registry() *nodes.Registry {
	return a.registry
}
