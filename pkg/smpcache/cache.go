// Package smpcache memoizes idempotent network lookups the download
// pipeline repeats across a single run — currently TileJSON documents
// (see pkg/style) — behind an LRU backed by hashicorp/golang-lru/v2.
package smpcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/styledmap/smp/pkg/smpmetrics"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is a thread-safe, size-bounded cache with per-entry expiry.
// Expired entries are evicted lazily on Get; size-bounding is handled
// by the underlying LRU.
type TTLCache[K comparable, V any] struct {
	mu   sync.Mutex
	lru  *lru.Cache[K, entry[V]]
	ttl  time.Duration
	name string
}

// New creates a cache holding at most size entries, each valid for
// ttl (0 disables expiry, relying on LRU eviction alone).
func New[K comparable, V any](name string, size int, ttl time.Duration) *TTLCache[K, V] {
	l, err := lru.New[K, entry[V]](size)
	if err != nil {
		// Only returns an error for size <= 0, which is a caller bug.
		panic("smpcache: invalid cache size: " + err.Error())
	}
	return &TTLCache[K, V]{lru: l, ttl: ttl, name: name}
}

// Get returns the cached value for key, if present and unexpired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		smpmetrics.RecordFetch(c.name, false, "cache_miss")
		var zero V
		return zero, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.lru.Remove(key)
		smpmetrics.RecordFetch(c.name, false, "cache_expired")
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's configured TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}
	c.lru.Add(key, entry[V]{value: value, expires: expires})
}

// Len returns the number of entries currently held, including any not
// yet lazily evicted past their expiry.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge empties the cache.
func (c *TTLCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
