// Package memory implements an in-memory Tally cache, intended for tests
// and single-process deployments that do not need the cache to survive a
// restart.
package memory

import (
	"context"
	"sync"

	tallycache "github.com/kyomi-dev/tally/cache"
)

// compile-time interface check
var _ tallycache.Cache = (*Cache)(nil)

type Cache struct {
	mu     sync.RWMutex
	values map[string]int64
}

func New() *Cache {
	return &Cache{values: make(map[string]int64)}
}

func (c *Cache) Get(_ context.Context, key string) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]
	return v, ok, nil
}

func (c *Cache) Set(_ context.Context, key string, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value
	return nil
}

func (c *Cache) SetNX(_ context.Context, key string, value int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.values[key]; exists {
		return false, nil
	}
	c.values[key] = value
	return true, nil
}

func (c *Cache) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] += delta
	return c.values[key], nil
}

func (c *Cache) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.IncrBy(ctx, key, -delta)
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.values)
}

func (c *Cache) Close() error { return nil }
