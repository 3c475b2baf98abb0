package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyBody is returned when a request carries no JSON body.
	ErrEmptyBody = errors.New("request body is empty")

	// ErrBodyTooLarge is returned when a request body exceeds the decode limit.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrMalformedBody is returned when the body is not valid JSON for the target.
	ErrMalformedBody = errors.New("malformed request body")
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into v, reading at most maxBytes
// when maxBytes is positive.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	body := r.Body
	if body == nil || body == http.NoBody {
		return ErrEmptyBody
	}
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, body, maxBytes)
	}

	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return ErrEmptyBody
		default:
			return fmt.Errorf("%w: %w", ErrMalformedBody, err)
		}
	}
	return nil
}

// ValidateRequest validates v with its struct tags, then with its own
// Validate method when it has one.
func ValidateRequest(v any) error {
	if err := validate.Struct(v); err != nil {
		return err
	}
	if custom, ok := v.(interface{ Validate() error }); ok {
		return custom.Validate()
	}
	return nil
}
