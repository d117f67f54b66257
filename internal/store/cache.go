package store

import (
	"sync"
	"time"

	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// DefaultCacheTTL bounds staleness of the current-version lookup between
// explicit invalidations.
const DefaultCacheTTL = 5 * time.Minute

// VersionCache is the non-authoritative read-through cache port for
// current-version lookups. All writes bypass it and explicitly invalidate
// the affected subject's entry.
type VersionCache interface {
	Get(subject types.SubjectID) (*types.RuleVersion, bool)
	Set(subject types.SubjectID, version *types.RuleVersion)
	Invalidate(subject types.SubjectID)
}

type cacheEntry struct {
	version  types.RuleVersion
	cachedAt time.Time
}

// MemoryVersionCache is an in-process VersionCache with per-subject TTL.
// Thread-safe for concurrent readers and writers.
type MemoryVersionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[types.SubjectID]cacheEntry
}

// NewMemoryVersionCache creates a cache with the given TTL.
// TTL <= 0 disables expiry (manual invalidation only).
func NewMemoryVersionCache(ttl time.Duration) *MemoryVersionCache {
	return &MemoryVersionCache{
		ttl:     ttl,
		entries: make(map[types.SubjectID]cacheEntry),
	}
}

// Get returns the cached current version, if present and unexpired.
// The returned value is a copy; callers cannot mutate the cache through it.
func (c *MemoryVersionCache) Get(subject types.SubjectID) (*types.RuleVersion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[subject]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.cachedAt) > c.ttl {
		return nil, false
	}
	version := entry.version
	return &version, true
}

// Set stores the subject's current version.
func (c *MemoryVersionCache) Set(subject types.SubjectID, version *types.RuleVersion) {
	if version == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[subject] = cacheEntry{version: *version, cachedAt: time.Now()}
}

// Invalidate drops the subject's entry, forcing a refresh on next Get.
func (c *MemoryVersionCache) Invalidate(subject types.SubjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, subject)
}
