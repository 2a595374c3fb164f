// Package cache defines the fast lookup layer for Tally counters.
//
// The cache holds one integer per key and is the read path for every
// balance and experience lookup. Writes flow through the durable store
// first, then land here, so a cached value may briefly lag the store but
// never leads it.
package cache

import "context"

// Cache is the integer key-value layer backing reads.
//
// Keys are the strings produced by types.Kind.CacheKey. A missing key
// reads as absent, not as zero; callers decide the default. IncrBy and
// DecrBy treat a missing key as zero and create it, and must be atomic
// with respect to concurrent calls on the same key.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (int64, bool, error)

	// Set stores value under key unconditionally.
	Set(ctx context.Context, key string, value int64) error

	// SetNX stores value under key only if the key is absent. It reports
	// whether the value was written.
	SetNX(ctx context.Context, key string, value int64) (bool, error)

	// IncrBy atomically adds delta to the value under key, creating the
	// key at zero if absent, and returns the new value.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// DecrBy atomically subtracts delta from the value under key,
	// creating the key at zero if absent, and returns the new value.
	DecrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Close releases the cache's resources.
	Close() error
}
