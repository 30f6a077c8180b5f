package ports

import (
	"context"
	"time"
)

// KeyValueStore abstracts the shared key-value cache used for windowed chat
// memory, billing counters, and the BM25 lexical-index cache. No multi-key
// transactions are required; counter increments rely on the store's own
// single-key atomicity (spec §5).
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// IncrBy atomically adds delta to the integer stored at key (0 if
	// absent) and returns the new value.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Expire refreshes a key's TTL without touching its value. A no-op
	// (not an error) if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
