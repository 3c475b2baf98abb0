package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/analysis-service/internal/domain"
)

// getPathJobID extracts and validates a job ID from the URL path.
// Job IDs are UUIDs; anything else is a validation error.
func getPathJobID(r *http.Request, paramName string) (string, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, paramName)
	}
	return id.String(), nil
}
