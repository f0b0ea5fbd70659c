// Package cache provides the in-memory TTL caches shared by the proxy handlers.
//
// Entries are never purged proactively: a stale entry is reported as a miss and stays in
// memory until the key is written again.
package cache

import (
	"sync"
	"time"

	"github.com/aristath/zulu7/internal/metrics"
)

// Entry is a cached value together with the instant it was stored.
type Entry[V any] struct {
	StoredAt time.Time `msgpack:"stored_at"`
	Value    V         `msgpack:"value"`
}

// TTL is a string-keyed cache whose entries are valid while now - StoredAt < ttl.
type TTL[V any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry[V]
}

// New creates a cache. The name labels its metrics.
func New[V any](name string, ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		name:    name,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry[V]),
	}
}

// SetClock replaces the time source. Used by tests.
func (c *TTL[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Name returns the cache name.
func (c *TTL[V]) Name() string {
	return c.name
}

// TTL returns the validity window of an entry.
func (c *TTL[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if it is present and still fresh.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	if !ok || now.Sub(entry.StoredAt) >= c.ttl {
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		var zero V
		return zero, false
	}

	metrics.CacheHits.WithLabelValues(c.name).Inc()
	return entry.Value, true
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = Entry[V]{StoredAt: c.now(), Value: value}
	size := len(c.entries)
	c.mu.Unlock()

	metrics.CacheEntries.WithLabelValues(c.name).Set(float64(size))
}

// Len returns the number of stored entries, stale ones included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
