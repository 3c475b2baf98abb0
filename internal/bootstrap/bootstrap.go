// Package bootstrap builds the components shared by the server and worker
// processes from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/analysis-service/internal/chunk"
	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/files"
	"github.com/phrazzld/analysis-service/internal/generation"
	"github.com/phrazzld/analysis-service/internal/platform/gemini"
	"github.com/phrazzld/analysis-service/internal/platform/openai"
	"github.com/phrazzld/analysis-service/internal/platform/postgres"
	"github.com/phrazzld/analysis-service/internal/platform/redisstore"
	"github.com/phrazzld/analysis-service/internal/queue"
	"github.com/phrazzld/analysis-service/internal/redact"
	"github.com/phrazzld/analysis-service/internal/task"
	"github.com/phrazzld/analysis-service/internal/webhook"
)

// Backend is an opened queue store.
type Backend struct {
	Store queue.Store
	// Purger is set for stores that do not expire keys on their own.
	Purger task.Purger
	close  func() error
}

// Close releases the store's connections.
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend connects to the configured queue store.
func OpenBackend(ctx context.Context, cfg config.QueueConfig, logger *slog.Logger) (*Backend, error) {
	switch cfg.Backend {
	case "redis":
		store, err := redisstore.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis store %s: %w", redact.URL(cfg.RedisURL), err)
		}
		logger.Info("queue store connected", "backend", cfg.Backend)
		return &Backend{Store: store, close: store.Close}, nil

	case "postgres":
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store %s: %w", redact.URL(cfg.DatabaseURL), err)
		}
		logger.Info("queue store connected", "backend", cfg.Backend)
		return &Backend{Store: store, Purger: store, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

// NewQueue wraps store in a JobQueue tuned by cfg.
func NewQueue(store queue.Store, cfg config.QueueConfig, logger *slog.Logger) *queue.JobQueue {
	return queue.New(store, queue.Options{
		JobTTL:         cfg.JobTTL,
		DequeueTimeout: cfg.DequeueTimeout,
		SyncCounterTTL: cfg.SyncCounterTTL,
	}, logger)
}

// NewCompleter connects to the configured LLM provider.
func NewCompleter(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Completer, error) {
	switch cfg.Provider {
	case "gemini":
		c, err := gemini.NewCompleter(ctx, cfg.GeminiAPIKey, logger)
		if err != nil {
			return nil, fmt.Errorf("create gemini completer: %w", err)
		}
		return c, nil
	case "openai":
		c, err := openai.NewCompleter(cfg.OpenAIAPIKey, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai completer: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewPipeline assembles the chunker, engine and pipeline over completer.
func NewPipeline(cfg *config.Config, completer generation.Completer, logger *slog.Logger) *task.Pipeline {
	chunker := chunk.New(chunk.NewTokenCounter(logger), chunk.OptionsFromConfig(cfg.Chunking), logger)
	engine := generation.NewAnalyzer(completer, generation.AnalyzerOptionsFromConfig(cfg.LLM), logger)
	return task.NewPipeline(chunker, engine, task.PipelineOptionsFromConfig(cfg.LLM), logger)
}

// NewResolver creates the file resolver. The client's own timeout is left
// unset; each download is bounded by the configured download timeout.
func NewResolver(cfg config.FilesConfig, logger *slog.Logger) *files.Resolver {
	return files.NewResolver(&http.Client{}, files.OptionsFromConfig(cfg), logger)
}

// NewNotifier creates the webhook deliverer.
func NewNotifier(cfg config.WebhookConfig, logger *slog.Logger) *webhook.Deliverer {
	return webhook.NewDeliverer(&http.Client{}, webhook.OptionsFromConfig(cfg), logger)
}
