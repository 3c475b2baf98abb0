package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/redact"
	"github.com/phrazzld/analysis-service/internal/task"
)

// FastPathStatus is the outcome of an inline attempt.
type FastPathStatus int

// Possible fast path outcomes
const (
	FastPathSkipped FastPathStatus = iota
	FastPathCompleted
	FastPathTimedOut
	FastPathErrored
)

func (s FastPathStatus) String() string {
	switch s {
	case FastPathSkipped:
		return "skipped"
	case FastPathCompleted:
		return "completed"
	case FastPathTimedOut:
		return "timed_out"
	case FastPathErrored:
		return "errored"
	default:
		return fmt.Sprintf("FastPathStatus(%d)", int(s))
	}
}

// FastPathResult reports what an inline attempt did. Result is set only when
// Status is FastPathCompleted.
type FastPathResult struct {
	Status FastPathStatus
	Result *domain.Result
	Reason string
	Err    error
}

// ErrFastPathPanicked wraps a panic recovered during an inline attempt.
var ErrFastPathPanicked = errors.New("fast path panicked")

// FastPathOptions controls inline fulfillment.
type FastPathOptions struct {
	Enabled  bool
	MaxChars int
	Timeout  time.Duration
}

// FastPathOptionsFromConfig maps the fast_path configuration section.
func FastPathOptionsFromConfig(cfg config.FastPathConfig) FastPathOptions {
	return FastPathOptions{
		Enabled:  cfg.Enabled,
		MaxChars: cfg.MaxChars,
		Timeout:  cfg.Timeout,
	}
}

// SyncStore tracks inline requests and stores their results.
type SyncStore interface {
	BeginSync(ctx context.Context) error
	EndSync(ctx context.Context) error
	StoreResult(ctx context.Context, jobID string, result *domain.Result) error
}

// FastPath serves small single-chunk requests inline, within one overall
// timeout. Every outcome other than FastPathCompleted means the caller
// should enqueue the request.
type FastPath struct {
	pipeline *task.Pipeline
	store    SyncStore
	opts     FastPathOptions
	logger   *slog.Logger
}

// NewFastPath creates a FastPath.
func NewFastPath(pipeline *task.Pipeline, store SyncStore, opts FastPathOptions, logger *slog.Logger) *FastPath {
	if logger == nil {
		logger = slog.Default()
	}
	return &FastPath{
		pipeline: pipeline,
		store:    store,
		opts:     opts,
		logger:   logger.With("component", "fast_path"),
	}
}

type fastPathOutcome struct {
	analysis task.Analysis
	err      error
}

// Attempt tries to analyze req inline and store its result under jobID.
func (f *FastPath) Attempt(ctx context.Context, jobID string, req domain.AnalysisRequest) FastPathResult {
	if reason := f.skipReason(req); reason != "" {
		return FastPathResult{Status: FastPathSkipped, Reason: reason}
	}

	chunks := f.pipeline.Chunk(req.Params, req.Content)
	if len(chunks) != 1 {
		return FastPathResult{Status: FastPathSkipped, Reason: "content needs more than one chunk"}
	}

	logger := f.logger.With("job_id", jobID, "record_id", req.RecordID)

	if err := f.store.BeginSync(ctx); err != nil {
		logger.Warn("failed to count sync request", "error", err)
		return FastPathResult{Status: FastPathErrored, Err: err}
	}
	defer func() {
		if err := f.store.EndSync(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release sync counter", "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	done := make(chan fastPathOutcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fastPathOutcome{err: fmt.Errorf("%w: %v", ErrFastPathPanicked, rec)}
			}
		}()
		done <- fastPathOutcome{analysis: f.pipeline.RunChunks(runCtx, req.Params, chunks)}
	}()

	var outcome fastPathOutcome
	select {
	case outcome = <-done:
	case <-runCtx.Done():
		logger.Info("fast path timed out, falling back to queue", "timeout", f.opts.Timeout)
		return FastPathResult{Status: FastPathTimedOut, Err: runCtx.Err()}
	}

	if outcome.err != nil {
		logger.Error("fast path panicked, falling back to queue", "error", outcome.err)
		return FastPathResult{Status: FastPathErrored, Err: outcome.err}
	}
	// Secondary calls fail open, so a deadline hit inside them still counts
	// as a timeout of the whole attempt.
	if runCtx.Err() != nil {
		return FastPathResult{Status: FastPathTimedOut, Err: runCtx.Err()}
	}
	if outcome.analysis.HasChunkErrors() {
		err := outcome.analysis.Err()
		logger.Info("fast path chunk failed, falling back to queue", "error", redact.Error(err))
		return FastPathResult{Status: FastPathErrored, Err: err}
	}

	result := outcome.analysis.Result(req.RecordID, task.PathSync, 0)
	if err := f.store.StoreResult(context.WithoutCancel(ctx), jobID, result); err != nil {
		logger.Error("failed to store fast path result", "error", err)
		return FastPathResult{Status: FastPathErrored, Err: err}
	}

	logger.Info("request served inline",
		"status", result.Status,
		"duration_ms", outcome.analysis.Duration.Milliseconds())
	return FastPathResult{Status: FastPathCompleted, Result: result}
}

func (f *FastPath) skipReason(req domain.AnalysisRequest) string {
	switch {
	case !f.opts.Enabled || f.opts.Timeout <= 0:
		return "fast path disabled"
	case req.IsFile():
		return "file request"
	case req.Webhook != nil:
		return "webhook request"
	case utf8.RuneCountInString(req.Content) >= f.opts.MaxChars:
		return "content too large"
	default:
		return ""
	}
}
