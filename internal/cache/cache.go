// Package cache provides a small in-process TTL cache for computed
// analytics results.
//
// Keys follow the scheme "analytics:<metric>:<scope>:<id>:<params>".
// Invalidation is scoped: callers delete by exact key, by prefix, or by
// predicate, never by flushing the whole cache.
package cache

import (
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a concurrent TTL cache. The zero value is not usable;
// construct with New.
type Cache struct {
	entries *xsync.Map[string, entry]
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: xsync.NewMap[string, entry](),
		now:     time.Now,
	}
}

// Get returns the cached value when present and not expired. Expired
// entries are removed lazily on read.
func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.entries.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the given time-to-live.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.entries.Store(key, entry{value: value, expiresAt: c.now().Add(ttl)})
}

// Remember returns the cached value under key, computing and storing it
// with the given TTL on a miss. Errors from compute are returned without
// caching.
func (c *Cache) Remember(key string, ttl time.Duration, compute func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Delete removes a single key.
func (c *Cache) Delete(key string) {
	c.entries.Delete(key)
}

// DeletePrefix removes every key starting with the given prefix.
func (c *Cache) DeletePrefix(prefix string) int {
	return c.DeleteMatching(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// DeleteMatching removes every key the predicate matches and reports how
// many entries were dropped.
func (c *Cache) DeleteMatching(match func(key string) bool) int {
	var dropped int
	c.entries.Range(func(key string, _ entry) bool {
		if match(key) {
			c.entries.Delete(key)
			dropped++
		}
		return true
	})
	return dropped
}

// Len returns the number of stored entries, including any not yet
// evicted after expiry.
func (c *Cache) Len() int {
	return c.entries.Size()
}
