package search

import (
	"sync"
	"time"
)

// resultCache is a TTL cache for computed results. Keys embed the graph
// version, so entries for a superseded version simply age out unused.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]cacheEntry)}
}

func (c *resultCache) get(key string) (*Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.result, true
}

func (c *resultCache) put(key string, result *Result, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= cachePruneThreshold {
		c.prune()
	}
	c.entries[key] = cacheEntry{result: result, expires: time.Now().Add(ttl)}
}

// prune drops expired entries. Called with the write lock held.
func (c *resultCache) prune() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
}
