package generation

import (
	"context"
	"errors"
	"net/http"
)

// Errors returned by the analysis engine. Providers wrap one of these so
// callers can classify failures with IsTransient and IsPermanent.
var (
	// ErrRateLimited is returned when the provider throttles the request.
	ErrRateLimited = errors.New("rate limited by analysis engine")

	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("analysis engine call timed out")

	// ErrUnavailable is returned for provider-side outages (5xx).
	ErrUnavailable = errors.New("analysis engine unavailable")

	// ErrProtocol is returned for malformed requests or unusable responses.
	ErrProtocol = errors.New("analysis engine protocol error")

	// ErrAuth is returned when the provider rejects the credentials.
	ErrAuth = errors.New("analysis engine rejected credentials")

	// ErrContentBlocked is returned when the provider's safety filters block
	// the content.
	ErrContentBlocked = errors.New("content blocked by analysis engine safety filters")

	// ErrInvalidConfig is returned when an engine is misconfigured.
	ErrInvalidConfig = errors.New("invalid analysis engine configuration")
)

// IsTransient reports whether err may succeed if retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether retrying err is pointless.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrContentBlocked) ||
		errors.Is(err, ErrInvalidConfig)
}

// ErrorForStatus maps a provider HTTP status code to an engine error.
// It returns nil for non-error codes.
func ErrorForStatus(code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusTooManyRequests || code == 529:
		return ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrTimeout
	case code >= 500:
		return ErrUnavailable
	default:
		return ErrProtocol
	}
}
