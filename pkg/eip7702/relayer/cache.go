package relayer

import (
	"context"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Cache is the small get/set/invalidate abstraction the oracle reads
// through. Expiry is checked on read by bigcache's life window; any external
// cache could be substituted without touching call sites.
type Cache struct {
	backend *bigcache.BigCache
}

// NewCache builds an in-memory cache whose entries expire after ttl.
func NewCache(ttl time.Duration) (*Cache, error) {
	backend, err := bigcache.New(context.Background(), bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, err
	}
	return &Cache{backend: backend}, nil
}

// Get returns the cached value and whether it was present and fresh.
func (c *Cache) Get(key string) ([]byte, bool) {
	value, err := c.backend.Get(key)
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *Cache) Set(key string, value []byte) {
	// A full cache evicting is acceptable; the next read refetches.
	_ = c.backend.Set(key, value)
}

// Invalidate drops key immediately instead of waiting for the TTL.
func (c *Cache) Invalidate(key string) {
	if err := c.backend.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		// Delete only fails for missing entries; nothing else to do.
		return
	}
}

func (c *Cache) Close() error {
	return c.backend.Close()
}
