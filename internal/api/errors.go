package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/analysis-service/internal/api/shared"
	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/files"
	"github.com/phrazzld/analysis-service/internal/service"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrContentTooLarge),
		errors.Is(err, shared.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, files.ErrInvalidReference),
		errors.Is(err, files.ErrTooManyFiles),
		errors.Is(err, shared.ErrEmptyBody),
		errors.Is(err, shared.ErrMalformedBody),
		errors.Is(err, ErrNoContent):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, domain.ErrContentTooLarge):
		return "Content exceeds maximum size"
	case errors.Is(err, shared.ErrBodyTooLarge):
		return "Request body too large"
	case errors.Is(err, domain.ErrEmptyContent), errors.Is(err, ErrNoContent):
		return "Content is required"
	case errors.Is(err, files.ErrTooManyFiles):
		return "Too many file references"
	case errors.Is(err, files.ErrInvalidReference):
		return "Invalid file reference"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, shared.ErrMalformedBody):
		return "Invalid request format"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a message naming the
// first failing field by its JSON name, without echoing the submitted value.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	if errors.Is(err, ErrNoContent) {
		return "Invalid request: content or file_urls is required"
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url":
		return "invalid URL"
	case "max":
		return "too long"
	case "gte", "lte":
		return "out of range"
	default:
		return "validation failed"
	}
}
