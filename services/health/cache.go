package health

import (
	"sync"
	"time"
)

// DefaultTTL is the probe-result lifetime when none is configured.
const DefaultTTL = 30 * time.Second

// cacheEntry is one recorded probe result.
type cacheEntry struct {
	healthy    bool
	observedAt time.Time
}

// Cache is a per-provider-name TTL cache of the last health-probe result.
// It decouples "is this endpoint up" from "try it right now": entries
// older than the TTL are treated as absent, forcing a fresh probe.
//
// One cache is shared across requests. Keys are provider names, so it
// never grows beyond the configured provider count and needs no eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewCache creates a health cache with the given TTL. Non-positive TTLs
// fall back to DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached result for a provider name. ok is false when no
// entry exists or the entry has outlived the TTL.
func (c *Cache) Get(name string) (healthy bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[name]
	if !exists || time.Since(entry.observedAt) > c.ttl {
		return false, false
	}
	return entry.healthy, true
}

// Set records a probe result, unconditionally overwriting any prior entry
// regardless of its TTL state.
func (c *Cache) Set(name string, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[name] = cacheEntry{healthy: healthy, observedAt: time.Now()}
}

// Len returns the number of recorded entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
