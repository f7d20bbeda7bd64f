package cache

import (
	"context"
	"time"
)

// Store is the capability interface for the distributed (L2) cache tier.
// It is implemented by the Redis adapter for real deployments and by the
// in-memory adapter for local development and tests; the implementation is
// selected at startup, never at call time.
type Store interface {
	// Get returns the value for key. The second return is false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes the given keys.
	Del(ctx context.Context, keys ...string) error

	// GetDel atomically reads and removes key. The second return is false
	// when the key did not exist.
	GetDel(ctx context.Context, key string) (string, bool, error)

	// Scan walks keys matching the glob pattern with a cursor, invoking fn
	// for each key. It never lists the full keyspace in one call.
	Scan(ctx context.Context, pattern string, fn func(key string) error) error

	// Incr increments the integer value at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks store connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}
