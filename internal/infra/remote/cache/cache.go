// Package cache provides a keyed in-memory response cache with per-entry
// expiry and stale reads.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached value with its lifetime.
type Entry[T any] struct {
	Value     T
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry is still within its lifetime at now.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Cache maps keys to entries. It is safe for concurrent use.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// New creates an empty cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]Entry[T])}
}

func (c *Cache[T]) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// Get returns the value for key if it is fresh. An expired entry is returned
// only when allowStale is set; otherwise it is evicted and reported absent.
func (c *Cache[T]) Get(key string, allowStale bool) (T, bool) {
	e, _, ok := c.lookup(key, allowStale)
	if !ok {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Lookup returns the entry for key, fresh or stale, and whether it is stale.
// Stale entries are kept.
func (c *Cache[T]) Lookup(key string) (Entry[T], bool, bool) {
	return c.lookup(key, true)
}

func (c *Cache[T]) lookup(key string, allowStale bool) (Entry[T], bool, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Entry[T]{}, false, false
	}
	if e.Fresh(now) {
		return e, false, true
	}
	if allowStale {
		return e, true, true
	}

	c.mu.Lock()
	// Only evict if nobody replaced it meanwhile.
	if cur, ok := c.entries[key]; ok && !cur.Fresh(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return Entry[T]{}, false, false
}

// Set stores value under key for d, replacing any previous entry.
// A non-positive d is rejected and Set returns false.
func (c *Cache[T]) Set(key string, value T, d time.Duration) bool {
	if d <= 0 {
		return false
	}
	now := c.now()
	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[string]Entry[T])
	}
	c.entries[key] = Entry[T]{Value: value, StoredAt: now, ExpiresAt: now.Add(d)}
	c.mu.Unlock()
	return true
}

// Delete removes key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[T])
	c.mu.Unlock()
}

// Prune drops entries that expired more than retention ago and returns how
// many were removed.
func (c *Cache[T]) Prune(retention time.Duration) int {
	cutoff := c.now().Add(-retention)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.ExpiresAt.Before(cutoff) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries, stale ones included.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
