package queue

import (
	"context"
	"errors"
	"time"
)

// Store errors. Implementations return these, possibly wrapped.
var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("key not found")

	// ErrEmpty is returned when a blocking pop times out.
	ErrEmpty = errors.New("list is empty")
)

// Store is the durable primitive layer the queue is built on. Every
// operation must be atomic; in particular BlockingPop must never hand the same
// element to two callers.
type Store interface {
	// Push adds value to the head of list.
	Push(ctx context.Context, list, value string) error

	// BlockingPop removes and returns the tail of list, waiting up to timeout.
	// It returns ErrEmpty when nothing arrives in time.
	BlockingPop(ctx context.Context, list string, timeout time.Duration) (string, error)

	// ListLen returns the length of list.
	ListLen(ctx context.Context, list string) (int64, error)

	// Get returns the value of key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetWithTTL stores value under key, expiring after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// SetAdd adds member to set.
	SetAdd(ctx context.Context, set, member string) error

	// SetRemove removes member from set and reports whether it was present.
	SetRemove(ctx context.Context, set, member string) (bool, error)

	// SetMembers lists the members of set.
	SetMembers(ctx context.Context, set string) ([]string, error)

	// SetCard returns the number of members in set.
	SetCard(ctx context.Context, set string) (int64, error)

	// IncrBy atomically adds delta to the counter at key and refreshes its TTL
	// in the same step, returning the new value. An expired or missing
	// counter starts from zero.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
