package cache

import (
	"context"
	"time"
)

// Cache defines the key-value operations the judge needs from a cache backend.
type Cache interface {
	// Get retrieves the value for key. A missing key yields "" and a nil error.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value with a ttl. A zero ttl means no expiration.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del removes keys.
	Del(ctx context.Context, keys ...string) error

	// Exists returns how many of keys exist.
	Exists(ctx context.Context, keys ...string) (int64, error)

	// TTL returns the remaining time to live of key.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Incr atomically increments the integer stored at key.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a ttl on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}
