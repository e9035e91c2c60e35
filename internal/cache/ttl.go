// Package cache provides a small in-process TTL cache used to remember
// remote identifiers (Drive folder and file ids) between requests.
package cache

import (
	"sync"
	"time"

	"github.com/kalambet/attune/internal/timewindow"
)

// DefaultTTL is the lifetime of an entry unless a Cache is built with another.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache maps string keys to values that expire after a fixed TTL.
//
// Concurrent writers may both miss and both repopulate the same key; the
// last Set wins. Callers must tolerate a stale identifier.
type Cache[V any] struct {
	clock timewindow.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]entry[V]
}

// New creates a Cache with the given TTL and the system clock.
func New[V any](ttl time.Duration) *Cache[V] {
	return NewWithClock[V](ttl, timewindow.SystemClock)
}

// NewWithClock creates a Cache with a custom clock (for testing).
func NewWithClock[V any](ttl time.Duration, clock timewindow.Clock) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for the cache's TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
