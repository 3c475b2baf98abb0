package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/phrazzld/analysis-service/internal/queue"
)

// DefaultPollInterval is how often BlockingPop re-checks an empty list.
const DefaultPollInterval = 250 * time.Millisecond

// QueueStore implements queue.Store on PostgreSQL.
type QueueStore struct {
	db           *sql.DB
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ queue.Store = (*QueueStore)(nil)

// NewQueueStore creates a QueueStore over an open database. The schema must
// already be migrated.
func NewQueueStore(db *sql.DB, logger *slog.Logger) *QueueStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueStore{
		db:           db,
		pollInterval: DefaultPollInterval,
		logger:       logger.With("component", "postgres_queue_store"),
	}
}

// Open connects to databaseURL, verifies connectivity and applies the queue
// migrations.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*QueueStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewQueueStore(db, logger), nil
}

// Push implements queue.Store. Newer rows get larger ids, so the head of a
// list is its largest id.
func (s *QueueStore) Push(ctx context.Context, list, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_list (list, value) VALUES ($1, $2)`, list, value)
	if err != nil {
		return fmt.Errorf("failed to push onto %s: %w", list, MapError(err))
	}
	return nil
}

// BlockingPop implements queue.Store by polling until timeout.
func (s *QueueStore) BlockingPop(ctx context.Context, list string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for {
		value, err := s.pop(ctx, list)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("failed to pop from %s: %w", list, MapError(err))
		}

		wait := min(s.pollInterval, time.Until(deadline))
		if wait <= 0 {
			return "", queue.ErrEmpty
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *QueueStore) pop(ctx context.Context, list string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM queue_list
		WHERE id = (
			SELECT id FROM queue_list
			WHERE list = $1
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING value`, list).Scan(&value)
	return value, err
}

// ListLen implements queue.Store.
func (s *QueueStore) ListLen(ctx context.Context, list string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM queue_list WHERE list = $1`, list).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", list, MapError(err))
	}
	return n, nil
}

// Get implements queue.Store. Expired keys are reported as missing.
func (s *QueueStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM queue_kv
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", queue.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, MapError(err))
	}
	return value, nil
}

// SetWithTTL implements queue.Store.
func (s *QueueStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_kv (key, value, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3::double precision))
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, MapError(err))
	}
	return nil
}

// SetAdd implements queue.Store.
func (s *QueueStore) SetAdd(ctx context.Context, set, member string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_set (set_name, member) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, set, member)
	if err != nil {
		return fmt.Errorf("failed to add to %s: %w", set, MapError(err))
	}
	return nil
}

// SetRemove implements queue.Store. Only one concurrent caller observes true.
func (s *QueueStore) SetRemove(ctx context.Context, set, member string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM queue_set WHERE set_name = $1 AND member = $2`, set, member)
	if err != nil {
		return false, fmt.Errorf("failed to remove from %s: %w", set, MapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// SetMembers implements queue.Store.
func (s *QueueStore) SetMembers(ctx context.Context, set string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member FROM queue_set WHERE set_name = $1 ORDER BY member`, set)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", set, MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan member of %s: %w", set, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", set, err)
	}
	return members, nil
}

// SetCard implements queue.Store.
func (s *QueueStore) SetCard(ctx context.Context, set string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM queue_set WHERE set_name = $1`, set).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", set, MapError(err))
	}
	return n, nil
}

// IncrBy implements queue.Store in one statement. An expired counter
// restarts from zero, matching Redis semantics.
func (s *QueueStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO queue_kv (key, value, expires_at)
		VALUES ($1, $2::bigint::text, now() + make_interval(secs => $3::double precision))
		ON CONFLICT (key) DO UPDATE SET
			value = CASE
				WHEN queue_kv.expires_at IS NOT NULL AND queue_kv.expires_at <= now()
				THEN $2::bigint::text
				ELSE (queue_kv.value::bigint + $2::bigint)::text
			END,
			expires_at = EXCLUDED.expires_at
		RETURNING value::bigint`, key, delta, ttl.Seconds()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to update counter %s: %w", key, MapError(err))
	}
	return n, nil
}

// PurgeExpired deletes expired keys and returns how many were removed.
func (s *QueueStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM queue_kv WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired keys: %w", MapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Debug("purged expired keys", "count", n)
	}
	return n, nil
}

// Ping implements queue.Store.
func (s *QueueStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements queue.Store.
func (s *QueueStore) Close() error {
	return s.db.Close()
}
