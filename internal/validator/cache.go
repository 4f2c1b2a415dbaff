package validator

import (
	"sync"
	"time"

	"github.com/shopfabric/backend/internal/domain"
)

// resultCache is an owned, per-hostname cache with a fixed TTL. Entries are
// evicted lazily on read; hostnames need no cross-key coordination.
type resultCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result    domain.ValidationResult
	expiresAt time.Time
}

func newResultCache(ttl time.Duration, now func() time.Time) *resultCache {
	return &resultCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *resultCache) get(hostname string) (domain.ValidationResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[hostname]
	c.mu.RUnlock()

	if !ok {
		return domain.ValidationResult{}, false
	}

	if c.now().After(entry.expiresAt) {
		c.invalidate(hostname)
		return domain.ValidationResult{}, false
	}

	return entry.result, true
}

func (c *resultCache) put(hostname string, result domain.ValidationResult) {
	c.mu.Lock()
	c.entries[hostname] = cacheEntry{
		result:    result,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *resultCache) invalidate(hostname string) {
	c.mu.Lock()
	delete(c.entries, hostname)
	c.mu.Unlock()
}

func (c *resultCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
