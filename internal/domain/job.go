package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the processing state of a job
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultMaxRetries is the number of job-level retries granted to a new job.
const DefaultMaxRetries = 2

// Job is the durable unit of work for one analysis request. Jobs are owned
// by the queue and the worker and expire by TTL; they are never deleted
// explicitly.
type Job struct {
	ID           string          `json:"job_id"`
	RecordID     string          `json:"record_id"`
	Status       JobStatus       `json:"status"`
	Request      AnalysisRequest `json:"request"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
}

// NewJob creates a pending job for the request under the given id.
// An empty id is replaced with a fresh UUID.
// Returns an error if the request fails validation.
func NewJob(id string, req AnalysisRequest, maxRetries int) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = NewJobID()
	}

	return &Job{
		ID:         id,
		RecordID:   req.RecordID,
		Status:     JobStatusPending,
		Request:    req,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: maxRetries,
	}, nil
}

// NewJobID returns a new opaque job identifier.
func NewJobID() string {
	return uuid.NewString()
}

// CanRetry reports whether the job has retry budget left.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IsTerminal reports whether the job has reached SUCCESS or FAILED.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusFailed
}

// MarkProcessing moves a pending job to processing and stamps started_at.
func (j *Job) MarkProcessing(now time.Time) error {
	if j.Status != JobStatusPending {
		return ErrInvalidTransition
	}
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	return nil
}

// MarkSucceeded moves the job to SUCCESS.
func (j *Job) MarkSucceeded(now time.Time) error {
	if j.Status != JobStatusProcessing {
		return ErrInvalidTransition
	}
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
	return nil
}

// MarkFailed moves the job to FAILED with the given message. Jobs may fail
// from pending as well, when they are rejected before processing starts.
func (j *Job) MarkFailed(now time.Time, message string) error {
	if j.IsTerminal() {
		return ErrInvalidTransition
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.CompletedAt = &now
	return nil
}

// ResetForRetry returns the job to pending and consumes one retry.
// It returns false and leaves the job untouched when retries are exhausted.
func (j *Job) ResetForRetry() bool {
	if !j.CanRetry() {
		return false
	}
	j.RetryCount++
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.ErrorMessage = ""
	return true
}

// IsValidJobStatus checks if the given status is a valid JobStatus.
func IsValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusSuccess, JobStatusFailed:
		return true
	default:
		return false
	}
}
