package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is an in-memory expiring key/value store. An entry is replaced as a
// whole on population, never field by field, and a failed population leaves
// any previous entry in place for callers that want to serve stale data.
type Cache[K comparable, V any] struct {
	mutex   sync.RWMutex
	entries map[K]entry[V]
	group   singleflight.Group

	Now func() time.Time
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		entries: map[K]entry[V]{},
		Now:     time.Now,
	}
}

// GetOrPopulate returns the unexpired value for key, or runs populate and
// stores its result with the given TTL. Concurrent calls for the same key
// share a single population. When populate fails the error is returned and
// the existing entry, expired or not, is kept untouched.
func (c *Cache[K, V]) GetOrPopulate(key K, ttl time.Duration, forceRefresh bool, populate func() (V, error)) (V, error) {
	if !forceRefresh {
		if value, ok := c.fresh(key); ok {
			return value, nil
		}
	}

	result, err, _ := c.group.Do(fmt.Sprintf("%v", key), func() (interface{}, error) {
		// A caller that was queued behind a completed population can use
		// its result instead of hitting upstream again
		if !forceRefresh {
			if value, ok := c.fresh(key); ok {
				return value, nil
			}
		}

		value, err := populate()
		if err != nil {
			return nil, err
		}

		c.mutex.Lock()
		c.entries[key] = entry[V]{
			value:     value,
			expiresAt: c.Now().Add(ttl),
		}
		c.mutex.Unlock()

		return value, nil
	})

	if err != nil {
		var zero V
		return zero, err
	}

	return result.(V), nil
}

// Stale returns whatever entry is stored for key regardless of expiry. It is
// the callers escape hatch when a population has just failed.
func (c *Cache[K, V]) Stale(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	existing, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	return existing.value, true
}

func (c *Cache[K, V]) fresh(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	existing, ok := c.entries[key]
	if !ok || !c.Now().Before(existing.expiresAt) {
		var zero V
		return zero, false
	}

	return existing.value, true
}
