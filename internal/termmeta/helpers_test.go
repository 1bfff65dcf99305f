package termmeta_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/termmeta/internal/cachemanager"
)

// mapCache is a plain map-backed CacheManager for asserting what the resolver stores.
type mapCache struct {
	mu    sync.Mutex
	items map[string]int64
}

var _ cachemanager.CacheManager[string, int64] = (*mapCache)(nil)

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]int64)}
}

func (c *mapCache) Get(_ context.Context, key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value int64, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *mapCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
			n++
		}
	}
	return n, nil
}

func (c *mapCache) Flush(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]int64)
	return nil
}

func (c *mapCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *mapCache) snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}
