// Package rediskv implements index.KV on Redis.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of the go-redis client this adapter needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var _ Client = (*redis.Client)(nil)

// Store wraps a Redis client to implement index.KV. Keys are namespaced
// under prefix so an index snapshot never collides with unrelated keys
// sharing the same Redis database.
type Store struct {
	client Client
	prefix string
}

// New returns a Store namespacing every key under prefix.
func New(client Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Put writes data under key with no expiration — index snapshots are
// long-lived state, not cache entries.
func (s *Store) Put(key string, data []byte) error {
	ctx := context.Background()
	if err := s.client.Set(ctx, s.key(key), data, time.Duration(0)).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get reads the bytes stored under key, reporting (nil, false, nil) if
// absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	ctx := context.Background()
	data, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return []byte(data), true, nil
}
