package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/analysis-service/internal/queue"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in AnalysisServiceError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrJobNotFound indicates that no job or result exists for an id.
	// API layer should map this to HTTP 404 Not Found.
	ErrJobNotFound = errors.New("job not found")
)

// AnalysisServiceError wraps errors from the analysis service with context.
type AnalysisServiceError struct {
	// Operation is the operation that failed (e.g., "submit", "poll")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for AnalysisServiceError.
func (e *AnalysisServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("analysis service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *AnalysisServiceError) Unwrap() error {
	return e.Err
}

// NewAnalysisServiceError creates a new AnalysisServiceError.
// It returns known sentinel errors directly without wrapping.
func NewAnalysisServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrJobNotFound) || errors.Is(err, queue.ErrJobNotFound) {
		return ErrJobNotFound
	}

	return &AnalysisServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
