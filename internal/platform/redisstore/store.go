// Package redisstore implements queue.Store on Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/analysis-service/internal/queue"
)

// Store is a queue.Store backed by a Redis client.
type Store struct {
	client *redis.Client
}

var _ queue.Store = (*Store)(nil)

// New connects to the Redis server at url (redis://host:port/db) and
// verifies the connection.
func New(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewFromClient(client), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Push implements queue.Store (LPUSH).
func (s *Store) Push(ctx context.Context, list, value string) error {
	return s.client.LPush(ctx, list, value).Err()
}

// BlockingPop implements queue.Store (BRPOP).
func (s *Store) BlockingPop(ctx context.Context, list string, timeout time.Duration) (string, error) {
	res, err := s.client.BRPop(ctx, timeout, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", queue.ErrEmpty
	}
	if err != nil {
		return "", err
	}
	// BRPOP replies with [list, value].
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	return res[1], nil
}

// ListLen implements queue.Store.
func (s *Store) ListLen(ctx context.Context, list string) (int64, error) {
	return s.client.LLen(ctx, list).Result()
}

// Get implements queue.Store.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", queue.ErrNotFound
	}
	return val, err
}

// SetWithTTL implements queue.Store (SET key value EX ttl).
func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// SetAdd implements queue.Store.
func (s *Store) SetAdd(ctx context.Context, set, member string) error {
	return s.client.SAdd(ctx, set, member).Err()
}

// SetRemove implements queue.Store.
func (s *Store) SetRemove(ctx context.Context, set, member string) (bool, error) {
	n, err := s.client.SRem(ctx, set, member).Result()
	return n > 0, err
}

// SetMembers implements queue.Store.
func (s *Store) SetMembers(ctx context.Context, set string) ([]string, error) {
	return s.client.SMembers(ctx, set).Result()
}

// SetCard implements queue.Store.
func (s *Store) SetCard(ctx context.Context, set string) (int64, error) {
	return s.client.SCard(ctx, set).Result()
}

// IncrBy implements queue.Store. INCRBY and EXPIRE run in one MULTI/EXEC
// transaction so a counter never exists without its TTL.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, key, delta)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Ping implements queue.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements queue.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
