package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyContent is returned when a text request carries no content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrContentTooLarge is returned when content exceeds the admission limit.
	ErrContentTooLarge = errors.New("content exceeds maximum size")

	// ErrInvalidJobStatus is returned when a job status is not valid.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidTransition is returned when a job status change is not allowed.
	ErrInvalidTransition = errors.New("invalid job status transition")
)
