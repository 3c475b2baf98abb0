package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/analysis-service/internal/domain"
)

// Store keys.
const (
	PendingList    = "analysis_jobs"
	ProcessingSet  = "processing_jobs"
	SyncCounterKey = "sync_jobs_active"

	jobKeyPrefix    = "job_data:"
	resultKeyPrefix = "job_result:"
)

// ErrJobNotFound is returned when a job record does not exist or has expired.
var ErrJobNotFound = errors.New("job not found")

// ErrResultNotFound is returned when no result has been stored for a job.
var ErrResultNotFound = errors.New("result not found")

// Options tunes JobQueue timing.
type Options struct {
	// JobTTL bounds the lifetime of job and result records.
	JobTTL time.Duration
	// DequeueTimeout bounds the blocking wait of Dequeue.
	DequeueTimeout time.Duration
	// SyncCounterTTL lets a leaked sync counter heal itself.
	SyncCounterTTL time.Duration
}

// Stats is a snapshot of queue load.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	SyncActive int64 `json:"sync_active"`
}

// JobQueue is the job state machine. It holds no in-process state beyond
// configuration, so any number of workers and request handlers may share one
// store.
type JobQueue struct {
	store  Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New creates a JobQueue over store.
func New(store Store, opts Options, logger *slog.Logger) *JobQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		store:  store,
		opts:   opts,
		logger: logger.With("component", "job_queue"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func jobKey(id string) string    { return jobKeyPrefix + id }
func resultKey(id string) string { return resultKeyPrefix + id }

// Enqueue persists job and pushes its id onto the pending list.
func (q *JobQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	if err := q.saveJob(ctx, job); err != nil {
		return err
	}
	if err := q.store.Push(ctx, PendingList, job.ID); err != nil {
		return fmt.Errorf("failed to push job %s: %w", job.ID, err)
	}

	q.logger.Info("job enqueued",
		"job_id", job.ID,
		"record_id", job.RecordID,
		"retry_count", job.RetryCount)
	return nil
}

// Dequeue waits for the next pending job, marks it PROCESSING and records it
// in the processing set. It returns nil, nil when the wait times out or when
// the popped id no longer refers to a pending job.
func (q *JobQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	id, err := q.store.BlockingPop(ctx, PendingList, q.opts.DequeueTimeout)
	if errors.Is(err, ErrEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop pending job: %w", err)
	}

	job, err := q.GetJob(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		q.logger.Warn("popped job has no record, skipping", "job_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := job.MarkProcessing(q.now()); err != nil {
		q.logger.Warn("popped job is not pending, skipping",
			"job_id", id,
			"status", job.Status)
		return nil, nil
	}
	// The processing mark goes first so a PROCESSING record is always
	// visible to RequeueStuck.
	if err := q.store.SetAdd(ctx, ProcessingSet, job.ID); err != nil {
		q.returnToPending(ctx, job.ID)
		return nil, fmt.Errorf("failed to mark job %s processing: %w", job.ID, err)
	}
	if err := q.saveJob(ctx, job); err != nil {
		if _, rmErr := q.store.SetRemove(ctx, ProcessingSet, job.ID); rmErr != nil {
			q.logger.Error("failed to unmark job after save error",
				"job_id", job.ID,
				"error", rmErr)
			return nil, err
		}
		q.returnToPending(ctx, job.ID)
		return nil, err
	}

	return job, nil
}

// returnToPending pushes a popped id back so the job is not lost when
// claiming it fails part way.
func (q *JobQueue) returnToPending(ctx context.Context, id string) {
	if err := q.store.Push(context.WithoutCancel(ctx), PendingList, id); err != nil {
		q.logger.Error("failed to return job to pending list",
			"job_id", id,
			"error", err)
	}
}

// Complete marks job SUCCESS.
func (q *JobQueue) Complete(ctx context.Context, job *domain.Job) error {
	if err := job.MarkSucceeded(q.now()); err != nil {
		return fmt.Errorf("cannot complete job %s in status %s: %w", job.ID, job.Status, err)
	}
	return q.finish(ctx, job)
}

// Fail marks job FAILED with message.
func (q *JobQueue) Fail(ctx context.Context, job *domain.Job, message string) error {
	if err := job.MarkFailed(q.now(), message); err != nil {
		return fmt.Errorf("cannot fail job %s in status %s: %w", job.ID, job.Status, err)
	}
	return q.finish(ctx, job)
}

func (q *JobQueue) finish(ctx context.Context, job *domain.Job) error {
	if err := q.saveJob(ctx, job); err != nil {
		return err
	}
	if _, err := q.store.SetRemove(ctx, ProcessingSet, job.ID); err != nil {
		return fmt.Errorf("failed to clear processing mark of job %s: %w", job.ID, err)
	}

	q.logger.Info("job finished",
		"job_id", job.ID,
		"status", job.Status,
		"retry_count", job.RetryCount)
	return nil
}

// Retry returns job to the tail of the pending list, consuming one retry.
// It returns false without touching the job when no retries remain.
func (q *JobQueue) Retry(ctx context.Context, job *domain.Job) (bool, error) {
	if !job.CanRetry() {
		return false, nil
	}

	job.ResetForRetry()
	if _, err := q.store.SetRemove(ctx, ProcessingSet, job.ID); err != nil {
		return false, fmt.Errorf("failed to clear processing mark of job %s: %w", job.ID, err)
	}
	if err := q.Enqueue(ctx, job); err != nil {
		return false, err
	}

	q.logger.Info("job scheduled for retry",
		"job_id", job.ID,
		"retry_count", job.RetryCount,
		"max_retries", job.MaxRetries)
	return true, nil
}

// GetJob loads a job record.
func (q *JobQueue) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	raw, err := q.store.Get(ctx, jobKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func (q *JobQueue) saveJob(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := q.store.SetWithTTL(ctx, jobKey(job.ID), string(data), q.opts.JobTTL); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// StoreResult saves result under jobID. A job record need not exist.
func (q *JobQueue) StoreResult(ctx context.Context, jobID string, result *domain.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for job %s: %w", jobID, err)
	}
	if err := q.store.SetWithTTL(ctx, resultKey(jobID), string(data), q.opts.JobTTL); err != nil {
		return fmt.Errorf("failed to save result for job %s: %w", jobID, err)
	}

	q.logger.Debug("result stored", "job_id", jobID, "status", result.Status)
	return nil
}

// GetResult loads the result stored under jobID.
func (q *JobQueue) GetResult(ctx context.Context, jobID string) (*domain.Result, error) {
	raw, err := q.store.Get(ctx, resultKey(jobID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result for job %s: %w", jobID, err)
	}

	var result domain.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to decode result for job %s: %w", jobID, err)
	}
	return &result, nil
}

// BeginSync counts one more request being served synchronously. The
// increment and the counter's TTL are applied together.
func (q *JobQueue) BeginSync(ctx context.Context) error {
	if _, err := q.store.IncrBy(ctx, SyncCounterKey, 1, q.opts.SyncCounterTTL); err != nil {
		return fmt.Errorf("failed to increment sync counter: %w", err)
	}
	return nil
}

// EndSync counts one fewer synchronous request. A counter driven below zero
// (its TTL expired mid-request) is reset.
func (q *JobQueue) EndSync(ctx context.Context) error {
	n, err := q.store.IncrBy(ctx, SyncCounterKey, -1, q.opts.SyncCounterTTL)
	if err != nil {
		return fmt.Errorf("failed to decrement sync counter: %w", err)
	}
	if n < 0 {
		return q.store.SetWithTTL(ctx, SyncCounterKey, "0", q.opts.SyncCounterTTL)
	}
	return nil
}

// Stats reports queue depth, in-flight jobs and active synchronous requests.
func (q *JobQueue) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.Pending, err = q.store.ListLen(ctx, PendingList); err != nil {
		return stats, fmt.Errorf("failed to read pending length: %w", err)
	}
	if stats.Processing, err = q.store.SetCard(ctx, ProcessingSet); err != nil {
		return stats, fmt.Errorf("failed to read processing count: %w", err)
	}

	raw, err := q.store.Get(ctx, SyncCounterKey)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return stats, fmt.Errorf("failed to read sync counter: %w", err)
	default:
		if _, scanErr := fmt.Sscan(raw, &stats.SyncActive); scanErr != nil {
			return stats, fmt.Errorf("failed to parse sync counter %q: %w", raw, scanErr)
		}
	}

	return stats, nil
}

// Ping checks the store.
func (q *JobQueue) Ping(ctx context.Context) error {
	return q.store.Ping(ctx)
}
