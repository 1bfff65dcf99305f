package cachemanager

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/termmeta/internal/log"
)

// NoExpiration keeps an item until it is deleted or the cache is flushed.
const NoExpiration = gocache.NoExpiration

// NoCleanup disables the background janitor; expired items are only dropped on access.
const NoCleanup time.Duration = 0

// NewInMemoryCacheManager initializes an in-memory cache.
// Passing NoExpiration and NoCleanup yields a cache that only shrinks on explicit
// Delete, DeletePrefix or Flush and runs no background goroutine.
func NewInMemoryCacheManager[K ~string, V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[K, V] {
	return &InMemoryCacheManager[K, V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// InMemoryCacheManager is the go-cache backed implementation of CacheManager.
// go-cache guards every item with its own lock, so readers never see a half-written value.
type InMemoryCacheManager[K ~string, V any] struct {
	useCase string
	cache   *gocache.Cache
}

var _ CacheManager[string, int64] = (*InMemoryCacheManager[string, int64])(nil)

// Get retrieves an item from the cache by its key
func (c *InMemoryCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zeroValue V

	value, found := c.cache.Get(string(key))
	if !found {
		log.Debug(log.CatCache, "cache miss", "cache", c.useCase, "key", key)
		return zeroValue, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.useCase, "key", key)

		return zeroValue, false
	}

	log.Debug(log.CatCache, "cache hit", "cache", c.useCase, "key", key)

	return v, true
}

// Set stores a value under key with the given TTL.
func (c *InMemoryCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	c.cache.Set(string(key), value, ttl)
}

// Delete removes values by key. Missing keys are ignored.
func (c *InMemoryCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}

	return nil
}

// DeletePrefix removes every value whose key starts with prefix and returns how many were removed.
func (c *InMemoryCacheManager[K, V]) DeletePrefix(ctx context.Context, prefix K) (int, error) {
	removed := 0
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, string(prefix)) {
			c.cache.Delete(key)
			removed++
		}
	}

	log.Debug(log.CatCache, "deleted by prefix", "cache", c.useCase, "prefix", prefix, "removed", removed)

	return removed, nil
}

// Flush removes every value.
func (c *InMemoryCacheManager[K, V]) Flush(ctx context.Context) error {
	c.cache.Flush()

	log.Debug(log.CatCache, "flushed", "cache", c.useCase)

	return nil
}

// Len returns the number of items in the cache, including expired items not yet cleaned up.
func (c *InMemoryCacheManager[K, V]) Len() int {
	return c.cache.ItemCount()
}
