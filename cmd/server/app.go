package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/analysis-service/internal/bootstrap"
	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/files"
	"github.com/phrazzld/analysis-service/internal/queue"
	"github.com/phrazzld/analysis-service/internal/service"
)

// application holds the shared dependencies of the server process and
// releases them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	backend  *bootstrap.Backend
	queue    *queue.JobQueue
	resolver *files.Resolver

	analysisService service.AnalysisService
}

// newApplication connects to the queue store and the LLM provider and wires
// the analysis service.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.backend, err = bootstrap.OpenBackend(ctx, cfg.Queue, logger)
	if err != nil {
		return nil, err
	}
	app.queue = bootstrap.NewQueue(app.backend.Store, cfg.Queue, logger)

	completer, err := bootstrap.NewCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM completer: %w", err)
	}
	logger.Info("LLM completer initialized", "provider", cfg.LLM.Provider)

	pipeline := bootstrap.NewPipeline(cfg, completer, logger)
	fastPath := service.NewFastPath(pipeline, app.queue, service.FastPathOptionsFromConfig(cfg.FastPath), logger)
	app.resolver = bootstrap.NewResolver(cfg.Files, logger)

	app.analysisService, err = service.NewAnalysisService(app.queue, fastPath, service.Options{
		MaxContentSize: cfg.Server.MaxContentSize,
		MaxRetries:     cfg.Queue.MaxRetries,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create analysis service: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases the queue store.
func (app *application) cleanup() {
	if err := app.backend.Close(); err != nil {
		app.logger.Error("error closing queue store", "error", err)
	}
	app.logger.Info("application shutdown completed")
}
