package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phrazzld/analysis-service/internal/queue"
)

// PostgreSQL error codes
const (
	// invalidTextRepresentationCode is raised when a counter holds a non-integer value
	invalidTextRepresentationCode = "22P02"

	// undefinedTableCode is raised when the queue schema has not been migrated
	undefinedTableCode = "42P01"
)

// ErrSchemaMissing is returned when the queue tables do not exist.
var ErrSchemaMissing = errors.New("queue schema is not migrated")

// ErrNotInteger is returned when a counter operation hits a non-integer value.
var ErrNotInteger = errors.New("value is not an integer")

// MapError maps a database error to the queue store error vocabulary.
// It wraps the original error to preserve context.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", queue.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case undefinedTableCode:
			return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
		case invalidTextRepresentationCode:
			return fmt.Errorf("%w: %v", ErrNotInteger, err)
		}
	}

	return err
}
