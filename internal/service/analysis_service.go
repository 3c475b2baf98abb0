package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/queue"
)

// SubmitStatus is the caller-visible state of a submitted request.
type SubmitStatus string

// Possible submit and poll statuses
const (
	StatusComplete   SubmitStatus = "complete"
	StatusProcessing SubmitStatus = "processing"
	StatusFailed     SubmitStatus = "failed"
)

// SubmitResponse is returned by Submit. Result is set when the request was
// served inline.
type SubmitResponse struct {
	JobID    string         `json:"job_id"`
	RecordID string         `json:"record_id"`
	Status   SubmitStatus   `json:"status"`
	Result   *domain.Result `json:"result,omitempty"`
}

// PollResponse is returned by Poll.
type PollResponse struct {
	JobID  string         `json:"job_id"`
	Status SubmitStatus   `json:"status"`
	Result *domain.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// HealthReport describes store connectivity and queue load.
type HealthReport struct {
	Healthy bool        `json:"healthy"`
	Stats   queue.Stats `json:"stats"`
}

// JobQueue is the part of the queue the service uses.
type JobQueue interface {
	Enqueue(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	GetResult(ctx context.Context, jobID string) (*domain.Result, error)
	Stats(ctx context.Context) (queue.Stats, error)
	Ping(ctx context.Context) error
}

// AnalysisService is the caller-facing entry point: it admits requests,
// serves small ones inline and queues the rest.
type AnalysisService interface {
	// Submit validates req and either serves it inline or enqueues it.
	Submit(ctx context.Context, req domain.AnalysisRequest) (SubmitResponse, error)

	// Poll reports the state of a submitted job and its result once available.
	Poll(ctx context.Context, jobID string) (PollResponse, error)

	// GetJob returns the job record.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// Health checks the store and reports queue statistics.
	Health(ctx context.Context) (HealthReport, error)
}

// Options configures the analysis service.
type Options struct {
	MaxContentSize int
	MaxRetries     int
}

type analysisServiceImpl struct {
	queue    JobQueue
	fastPath *FastPath
	opts     Options
	logger   *slog.Logger
}

// NewAnalysisService creates an AnalysisService. fastPath may be nil, in
// which case every request is queued.
func NewAnalysisService(q JobQueue, fastPath *FastPath, opts Options, logger *slog.Logger) (AnalysisService, error) {
	if q == nil {
		return nil, &AnalysisServiceError{
			Operation: "create_service",
			Message:   "queue cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &analysisServiceImpl{
		queue:    q,
		fastPath: fastPath,
		opts:     opts,
		logger:   logger.With("component", "analysis_service"),
	}, nil
}

// Submit implements AnalysisService.
func (s *analysisServiceImpl) Submit(ctx context.Context, req domain.AnalysisRequest) (SubmitResponse, error) {
	req.Params = req.Params.WithDefaults()
	if err := req.Validate(); err != nil {
		return SubmitResponse{}, err
	}
	if s.opts.MaxContentSize > 0 && utf8.RuneCountInString(req.Content) > s.opts.MaxContentSize {
		return SubmitResponse{}, fmt.Errorf("%w: %w: limit is %d characters",
			domain.ErrValidation, domain.ErrContentTooLarge, s.opts.MaxContentSize)
	}

	jobID := domain.NewJobID()
	resp := SubmitResponse{JobID: jobID, RecordID: req.RecordID}

	if s.fastPath != nil {
		fast := s.fastPath.Attempt(ctx, jobID, req)
		switch fast.Status {
		case FastPathCompleted:
			resp.Result = fast.Result
			resp.Status = StatusComplete
			if !fast.Result.Succeeded() {
				resp.Status = StatusFailed
			}
			return resp, nil
		case FastPathSkipped:
			s.logger.DebugContext(ctx, "fast path skipped", "job_id", jobID, "reason", fast.Reason)
		default:
			s.logger.InfoContext(ctx, "fast path fell through",
				"job_id", jobID,
				"outcome", fast.Status.String())
		}
	}

	job, err := domain.NewJob(jobID, req, s.opts.MaxRetries)
	if err != nil {
		return SubmitResponse{}, err
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue job",
			"error", err,
			"job_id", jobID,
			"record_id", req.RecordID)
		return SubmitResponse{}, NewAnalysisServiceError("submit", "failed to enqueue job", err)
	}

	s.logger.InfoContext(ctx, "analysis job queued",
		"job_id", jobID,
		"record_id", req.RecordID,
		"kind", req.Kind)
	resp.Status = StatusProcessing
	return resp, nil
}

// Poll implements AnalysisService. A stored result wins over the job
// record, since inline requests have no job record.
func (s *analysisServiceImpl) Poll(ctx context.Context, jobID string) (PollResponse, error) {
	resp := PollResponse{JobID: jobID}

	result, err := s.queue.GetResult(ctx, jobID)
	switch {
	case err == nil:
		job, jobErr := s.queue.GetJob(ctx, jobID)
		if jobErr == nil && !job.IsTerminal() {
			// A retry is reprocessing the job; the stored result is stale.
			resp.Status = StatusProcessing
			return resp, nil
		}
		resp.Result = result
		resp.Status = StatusComplete
		if jobErr == nil && job.Status == domain.JobStatusFailed {
			resp.Status = StatusFailed
			resp.Error = job.ErrorMessage
		} else if !result.Succeeded() {
			resp.Status = StatusFailed
			resp.Error = result.ErrorMessage
		}
		return resp, nil
	case !errors.Is(err, queue.ErrResultNotFound):
		return resp, NewAnalysisServiceError("poll", "failed to load result", err)
	}

	job, err := s.queue.GetJob(ctx, jobID)
	if err != nil {
		return resp, NewAnalysisServiceError("poll", "failed to load job", err)
	}
	if job.Status == domain.JobStatusFailed {
		resp.Status = StatusFailed
		resp.Error = job.ErrorMessage
		return resp, nil
	}
	resp.Status = StatusProcessing
	return resp, nil
}

// GetJob implements AnalysisService.
func (s *analysisServiceImpl) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.queue.GetJob(ctx, jobID)
	if err != nil {
		return nil, NewAnalysisServiceError("get_job", "failed to load job", err)
	}
	return job, nil
}

// Health implements AnalysisService.
func (s *analysisServiceImpl) Health(ctx context.Context) (HealthReport, error) {
	if err := s.queue.Ping(ctx); err != nil {
		return HealthReport{}, NewAnalysisServiceError("health", "store unreachable", err)
	}
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return HealthReport{}, NewAnalysisServiceError("health", "failed to read queue stats", err)
	}
	return HealthReport{Healthy: true, Stats: stats}, nil
}
