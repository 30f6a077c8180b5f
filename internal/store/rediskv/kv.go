// Package rediskv implements ports.KeyValueStore on Redis: windowed chat
// memory, billing counters and the BM25 lexical-index cache all share this
// one client (spec §5).
package rediskv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// Config holds the connection settings for the shared Redis instance.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements ports.KeyValueStore with go-redis.
type Store struct {
	client *redis.Client
}

// New creates a Store and verifies connectivity with a Ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("rediskv.New: ping: %w", err)
	}
	return &Store{client: client}, nil
}

var _ ports.KeyValueStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("rediskv.Get: %w", err)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("rediskv.Set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("rediskv.Delete: %w", err)
	}
	return nil
}

func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("rediskv.IncrBy: %w", err)
	}
	return v, nil
}

// Expire is a no-op, not an error, when key does not exist, matching
// Redis's own EXPIRE semantics and the KeyValueStore contract.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("rediskv.Expire: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
