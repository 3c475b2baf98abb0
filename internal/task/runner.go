package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/files"
	"github.com/phrazzld/analysis-service/internal/queue"
	"github.com/phrazzld/analysis-service/internal/redact"
)

// Processing paths recorded in result stats.
const (
	PathSync  = "sync"
	PathAsync = "async"
)

// WebhookFailedMessage is recorded on jobs whose analysis finished but whose
// webhook could not be delivered after every retry.
const WebhookFailedMessage = "webhook delivery failed"

// ErrJobPanicked wraps a panic recovered while processing a job.
var ErrJobPanicked = errors.New("job processing panicked")

// JobQueue is the part of the queue the runner drives.
type JobQueue interface {
	Dequeue(ctx context.Context) (*domain.Job, error)
	Complete(ctx context.Context, job *domain.Job) error
	Fail(ctx context.Context, job *domain.Job, message string) error
	Retry(ctx context.Context, job *domain.Job) (bool, error)
	StoreResult(ctx context.Context, jobID string, result *domain.Result) error
	RequeueStuck(ctx context.Context, olderThan time.Duration) (queue.RecoveryReport, error)
}

// FileResolver turns a file-bearing request into text.
type FileResolver interface {
	ResolveText(ctx context.Context, req domain.AnalysisRequest) (string, error)
}

// Notifier pushes a finished result to a webhook target.
type Notifier interface {
	Deliver(ctx context.Context, target domain.WebhookTarget, payload any) error
}

// Purger removes expired rows from stores without native expiry.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many jobs are processed concurrently
	WorkerCount int

	// StuckJobAge defines how long a job can be in processing state
	// before it's considered stuck and recovered
	StuckJobAge time.Duration

	// StuckCheckInterval defines how often to check for stuck jobs
	// If zero, defaults to 5 minutes
	StuckCheckInterval time.Duration

	// IdleDelay is the pause after a dequeue that found no job
	IdleDelay time.Duration

	// ErrorDelay is the pause after a failed dequeue
	ErrorDelay time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:        1,
		StuckJobAge:        2 * time.Hour,
		StuckCheckInterval: 5 * time.Minute,
		IdleDelay:          time.Second,
		ErrorDelay:         5 * time.Second,
	}
}

// RunnerConfigFromConfig builds a RunnerConfig from application configuration.
func RunnerConfigFromConfig(cfg *config.Config) RunnerConfig {
	rc := DefaultRunnerConfig()
	rc.WorkerCount = cfg.Worker.Count
	rc.StuckJobAge = cfg.Queue.StuckJobAge
	rc.StuckCheckInterval = cfg.Queue.StuckCheckInterval
	return rc
}

// Runner pulls jobs from the queue and drives each one through file
// resolution, the analysis pipeline, result storage and webhook delivery.
type Runner struct {
	queue    JobQueue
	pipeline *Pipeline
	resolver FileResolver
	notifier Notifier
	purger   Purger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
}

// NewRunner creates a new Runner. resolver and notifier may be nil when no
// file requests or webhooks are expected.
func NewRunner(
	q JobQueue,
	pipeline *Pipeline,
	resolver FileResolver,
	notifier Notifier,
	config RunnerConfig,
	logger *slog.Logger,
) *Runner {
	defaults := DefaultRunnerConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.StuckCheckInterval <= 0 {
		config.StuckCheckInterval = defaults.StuckCheckInterval
	}
	if config.StuckJobAge <= 0 {
		config.StuckJobAge = defaults.StuckJobAge
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:      q,
		pipeline:   pipeline,
		resolver:   resolver,
		notifier:   notifier,
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger.With("component", "runner"),
	}
}

// SetPurger registers a store whose expired rows are purged on every stuck
// job check.
func (r *Runner) SetPurger(p Purger) {
	r.purger = p
}

// Start recovers stuck jobs and starts the worker loops and the stuck job
// monitor.
func (r *Runner) Start() {
	r.recoverStuck()

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	r.logger.Info("runner started", "workers", r.config.WorkerCount)
}

// Stop stops pulling new jobs and waits for in-flight jobs to finish.
// A dequeue in progress runs to its wait bound so a popped job is never lost.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("runner stopped")
}

// worker processes jobs until the runner is stopped
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	logger := r.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		select {
		case <-r.ctx.Done():
			logger.Debug("stopping worker")
			return
		default:
		}

		processed, err := r.ProcessNext(context.WithoutCancel(r.ctx))
		switch {
		case err != nil:
			logger.Error("worker loop error", "error", err)
			r.pause(r.config.ErrorDelay)
		case !processed:
			r.pause(r.config.IdleDelay)
		}
	}
}

func (r *Runner) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	_ = sleepContext(r.ctx, d)
}

// ProcessNext dequeues and processes one job. It reports whether a job was
// processed. ctx should not be cancelled on shutdown, so in-flight work
// completes.
func (r *Runner) ProcessNext(ctx context.Context) (bool, error) {
	job, err := r.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	r.processJob(ctx, job)
	return true, nil
}

// processJob handles execution of a single job. Every outcome leaves the job
// terminal or back in the pending list.
func (r *Runner) processJob(ctx context.Context, job *domain.Job) {
	logger := r.logger.With(
		"job_id", job.ID,
		"record_id", job.RecordID,
		"retry_count", job.RetryCount,
	)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic while processing job",
				"panic", rec,
				"stack", string(debug.Stack()))
			r.handleFailure(ctx, logger, job, fmt.Errorf("%w: %v", ErrJobPanicked, rec), false, nil)
		}
	}()

	logger.Info("processing job", "kind", job.Request.Kind)

	content, err := r.content(ctx, job.Request)
	if err != nil {
		r.handleFailure(ctx, logger, job, fmt.Errorf("resolve files: %w", err), files.IsPermanent(err), nil)
		return
	}

	analysis := r.pipeline.Run(ctx, job.Request.Params, content)
	result := analysis.Result(job.RecordID, PathAsync, job.RetryCount)
	if analysis.HasChunkErrors() {
		r.handleFailure(ctx, logger, job, analysis.Err(), analysis.Permanent(), result)
		return
	}

	// Persist before delivery so pollers see the result even if delivery fails.
	if err := r.queue.StoreResult(ctx, job.ID, result); err != nil {
		r.handleFailure(ctx, logger, job, err, false, nil)
		return
	}

	if job.Request.Webhook != nil && r.notifier != nil {
		if err := r.notifier.Deliver(ctx, *job.Request.Webhook, result); err != nil {
			logger.Warn("webhook delivery failed", "error", redact.Error(err))
			r.retryOrFail(ctx, logger, job, WebhookFailedMessage)
			return
		}
	}

	if result.Succeeded() {
		if err := r.queue.Complete(ctx, job); err != nil {
			logger.Error("failed to complete job", "error", err)
		}
		return
	}

	if err := r.queue.Fail(ctx, job, result.ErrorMessage); err != nil {
		logger.Error("failed to fail job", "error", err)
	}
}

func (r *Runner) content(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	if !req.IsFile() {
		return req.Content, nil
	}
	if r.resolver == nil {
		return "", fmt.Errorf("%w: no file resolver configured", files.ErrUnsupportedType)
	}
	return r.resolver.ResolveText(ctx, req)
}

// retryOrFail requeues job if it has retries left, otherwise fails it with
// message. It reports whether the job was requeued.
func (r *Runner) retryOrFail(ctx context.Context, logger *slog.Logger, job *domain.Job, message string) bool {
	retried, err := r.queue.Retry(ctx, job)
	if err != nil {
		logger.Error("failed to requeue job", "error", err)
	}
	if retried {
		logger.Info("job queued for retry", "retry_count", job.RetryCount)
		return true
	}

	if err := r.queue.Fail(ctx, job, message); err != nil {
		logger.Error("failed to fail job", "error", err)
	}
	return false
}

// handleFailure retries job unless cause is permanent. Otherwise the job is
// failed, a FAILED result is stored and the webhook is notified on a best
// effort basis. result, when given, is stored instead of a bare error result.
func (r *Runner) handleFailure(
	ctx context.Context,
	logger *slog.Logger,
	job *domain.Job,
	cause error,
	permanent bool,
	result *domain.Result,
) {
	message := "Job processing failed: " + redact.Error(cause)
	logger.Warn("job failed",
		"error", redact.Error(cause),
		"permanent", permanent)

	if !permanent && job.Status == domain.JobStatusProcessing {
		if r.retryOrFail(ctx, logger, job, message) {
			return
		}
	} else if err := r.queue.Fail(ctx, job, message); err != nil {
		logger.Error("failed to fail job", "error", err)
	}

	if result == nil {
		result = domain.NewFailedResult(job.RecordID, message, map[string]any{
			domain.StatRetryCount: job.RetryCount,
			domain.StatPath:       PathAsync,
		})
	}
	if result.ErrorMessage == "" {
		result.ErrorMessage = message
	}
	if err := r.queue.StoreResult(ctx, job.ID, result); err != nil {
		logger.Error("failed to store error result", "error", err)
	}

	if job.Request.Webhook != nil && r.notifier != nil {
		if err := r.notifier.Deliver(ctx, *job.Request.Webhook, result); err != nil {
			logger.Warn("failed to deliver error result", "error", redact.Error(err))
		}
	}
}

// stuckJobMonitor periodically recovers jobs that have been in processing
// state for too long
func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.recoverStuck()
		}
	}
}

func (r *Runner) recoverStuck() {
	ctx := context.WithoutCancel(r.ctx)

	report, err := r.queue.RequeueStuck(ctx, r.config.StuckJobAge)
	if err != nil {
		r.logger.Error("failed to recover stuck jobs", "error", err)
	} else if report.Requeued > 0 || report.Failed > 0 {
		r.logger.Info("recovered stuck jobs",
			"requeued", report.Requeued,
			"failed", report.Failed)
	}

	if r.purger != nil {
		n, err := r.purger.PurgeExpired(ctx)
		if err != nil {
			r.logger.Error("failed to purge expired entries", "error", err)
		} else if n > 0 {
			r.logger.Debug("purged expired entries", "count", n)
		}
	}
}
