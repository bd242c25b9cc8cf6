// Package content builds and caches the loaders that produce item bodies.
package content

import (
	"context"
	"fmt"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Factory constructs the loader for a key. It may be slow.
type Factory func(ctx context.Context) (domain.ContentLoader, error)

// Cache is a bounded key to loader cache.
//
// Resolved loaders live in an LRU of fixed capacity. Construction for a key
// runs at most once at a time: concurrent misses join the running factory
// call instead of starting another. In-flight constructions are not part of
// the LRU, so they can never be evicted. A failed construction caches nothing.
type Cache struct {
	entries *lru.Cache[string, domain.ContentLoader]
	flights singleflight.Group
	logger  *logger.Logger
}

// NewCache creates a cache holding at most capacity resolved loaders
func NewCache(capacity int, log *logger.Logger) (*Cache, error) {
	c := &Cache{logger: log.WithComponent("content-cache")}

	entries, err := lru.NewWithEvict(capacity, func(key string, _ domain.ContentLoader) {
		c.logger.Debug("Evicted content loader", "key", key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create content cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// GetOrCreate returns the cached loader for key, joins a running
// construction of it, or runs factory. The construction itself is not
// cancelled when ctx ends; only this caller stops waiting.
func (c *Cache) GetOrCreate(ctx context.Context, key string, factory Factory) (domain.ContentLoader, error) {
	if loader, ok := c.entries.Get(key); ok {
		return loader, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (interface{}, error) {
		// a flight for key may have finished between the miss and DoChan
		if loader, ok := c.entries.Peek(key); ok {
			return loader, nil
		}

		loader, err := factory(detached)
		if err != nil {
			c.logger.Warn("Content loader construction failed", "key", key, "error", err)
			return nil, domain.NewCacheConstructionError(key, err)
		}
		c.entries.Add(key, loader)
		return loader, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.ContentLoader), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Contains reports whether key has a resolved loader, without touching recency
func (c *Cache) Contains(key string) bool {
	return c.entries.Contains(key)
}

// Remove drops a resolved loader
func (c *Cache) Remove(key string) {
	c.entries.Remove(key)
}

// Len returns the number of resolved loaders
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every resolved loader
func (c *Cache) Purge() {
	c.entries.Purge()
}
