package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/pflag"

	"github.com/specialistvlad/cipipe/internal/config"
	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/metrics"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/pipeline"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	ctx        context.Context
	logger     *slog.Logger
	config     *Config
	catalog    *module.Catalog
	loader     *config.Loader
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own logger and metrics registry. A nil
// catalog means every core module.
func NewApp(outW io.Writer, cfg *Config, catalog *module.Catalog) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if catalog == nil {
		catalog = NewCatalog()
	}
	logger.Debug("Modules registered.", "count", len(catalog.Names()))

	return &App{
		outW:    outW,
		ctx:     ctxlog.WithLogger(context.Background(), logger),
		logger:  logger,
		config:  cfg,
		catalog: catalog,
		loader:  config.NewLoader(cfg.ConfigDirs...),
		metrics: metrics.New(),
	}
}

// Catalog returns the modules the app can run. This is primarily for testing.
func (app *App) Catalog() *module.Catalog {
	return app.catalog
}

// Metrics returns the app's collectors. This is primarily for testing.
func (app *App) Metrics() *metrics.Metrics {
	return app.metrics
}

// Run executes the pipeline. The returned error is a *failure.Failure when a
// module ended the pipeline.
func (app *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, app.logger)
	app.logger.Debug("App.Run method started.")

	app.healthCheckServer()
	defer app.closeHealthCheckServer()

	if app.config.Info {
		app.logger.Info("ℹ️ Pipeline command line", "command", "cipipe "+pipeline.CommandLine(app.config.Steps))
	}
	app.logger.Debug("Configuration directories.", "dirs", app.loader.Dirs())

	app.logger.Info("🚀 Starting pipeline...", "modules", len(app.config.Steps), "retries", app.config.Retries)
	runner := pipeline.New(app.catalog,
		pipeline.WithConfig(app.loader),
		pipeline.WithRetries(app.config.Retries),
		pipeline.WithMetrics(app.metrics),
		pipeline.WithOutput(app.outW),
	)
	err := runner.Run(ctx, app.config.Steps)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		// A module printed its usage.
		return err
	case err != nil:
		pipeline.LogFailure(app.logger, err)
		return err
	}

	app.logger.Debug("App.Run method finished.")
	return nil
}
