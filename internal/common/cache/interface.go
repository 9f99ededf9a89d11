// Package cache provides the cache abstraction used by repositories and the
// judge pipeline. Redis is the production implementation; tests run against
// miniredis.
package cache

import (
	"context"
	"time"
)

// Cache defines the operations the judge core needs from a cache backend.
type Cache interface {
	// Get retrieves the value for the given key. A missing key yields ""
	// and a nil error.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL. A zero ttl means no
	// expiration.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist.
	// Returns true if the key was set.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) error

	// Exists returns the number of keys that exist.
	Exists(ctx context.Context, keys ...string) (int64, error)

	// TryLock attempts to acquire a lock key. Returns true if acquired.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases a lock key.
	Unlock(ctx context.Context, key string) error

	// Ping verifies the cache connection is alive.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// NullCacheValue marks the cached absence of a record so repeated misses do
// not hit the backing store.
const NullCacheValue = "$NULL$"

// GetWithCached implements the cache-aside pattern with null value caching.
// On a miss it calls fn, stores the result (or NullCacheValue for empty
// results), and returns it.
func GetWithCached[T any](
	ctx context.Context,
	c Cache,
	key string,
	ttl time.Duration,
	emptyTTL time.Duration,
	isEmpty func(T) bool,
	marshal func(T) string,
	unmarshal func(string) (T, error),
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	if cached, err := c.Get(ctx, key); err == nil && cached != "" {
		if cached == NullCacheValue {
			return zero, nil
		}
		if result, err := unmarshal(cached); err == nil {
			return result, nil
		}
	}

	data, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	if isEmpty(data) {
		_ = c.Set(ctx, key, NullCacheValue, emptyTTL)
		return zero, nil
	}

	_ = c.Set(ctx, key, marshal(data), ttl)
	return data, nil
}

// UpdateCached runs the update and invalidates the cache key afterwards.
func UpdateCached(ctx context.Context, c Cache, key string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	_ = c.Del(ctx, key)
	return nil
}
