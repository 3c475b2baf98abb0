// Package main implements the analysis worker. It pulls queued jobs, runs
// them through the analysis pipeline, stores results and delivers webhooks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/phrazzld/analysis-service/internal/bootstrap"
	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/platform/logger"
	"github.com/phrazzld/analysis-service/internal/task"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("analysis worker: %v", err)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l := logger.Setup(cfg.Server.LogLevel)
	l.Info("worker configuration loaded",
		"workers", cfg.Worker.Count,
		"queue_backend", cfg.Queue.Backend,
		"llm_provider", cfg.LLM.Provider)

	backend, err := bootstrap.OpenBackend(ctx, cfg.Queue, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			l.Error("error closing queue store", "error", err)
		}
	}()

	completer, err := bootstrap.NewCompleter(ctx, cfg.LLM, l)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM completer: %w", err)
	}

	runner := task.NewRunner(
		bootstrap.NewQueue(backend.Store, cfg.Queue, l),
		bootstrap.NewPipeline(cfg, completer, l),
		bootstrap.NewResolver(cfg.Files, l),
		bootstrap.NewNotifier(cfg.Webhook, l),
		task.RunnerConfigFromConfig(cfg),
		l,
	)
	if backend.Purger != nil {
		runner.SetPurger(backend.Purger)
	}

	runner.Start()
	<-ctx.Done()

	l.Info("shutdown signal received, draining in-flight jobs")
	runner.Stop()
	l.Info("worker shutdown completed")
	return nil
}
