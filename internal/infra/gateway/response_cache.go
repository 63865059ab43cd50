// File: internal/infra/gateway/response_cache.go
package gateway

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ResponseCache deduplicates completion responses keyed by a hash of
// (prompt, systemContext). Implementations must treat entries past TTL as
// absent at read time regardless of whether pruning has run.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, response string)
	Size(ctx context.Context) int
}

type cacheEntry struct {
	response string
	storedAt time.Time
}

var _ ResponseCache = (*MemoryResponseCache)(nil)

// MemoryResponseCache is the in-process response cache: TTL at read time plus
// a courtesy prune (oldest-first, not strict LRU) once the map exceeds the
// size ceiling.
type MemoryResponseCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryResponseCache(ttl time.Duration, maxEntries int) *MemoryResponseCache {
	return &MemoryResponseCache{
		entries:    map[string]cacheEntry{},
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// NewMemoryResponseCacheAt is NewMemoryResponseCache with an injected clock.
func NewMemoryResponseCacheAt(ttl time.Duration, maxEntries int, now func() time.Time) *MemoryResponseCache {
	c := NewMemoryResponseCache(ttl, maxEntries)
	c.now = now
	return c
}

func (c *MemoryResponseCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.response, true
}

func (c *MemoryResponseCache) Set(_ context.Context, key, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{response: response, storedAt: c.now()}
	if len(c.entries) > c.maxEntries {
		c.prune()
	}
}

func (c *MemoryResponseCache) Size(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// prune drops expired entries first, then the oldest remaining entries until
// the map fits the ceiling again. Caller holds the lock.
func (c *MemoryResponseCache) prune() {
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}
	type aged struct {
		key      string
		storedAt time.Time
	}
	byAge := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		byAge = append(byAge, aged{k, e.storedAt})
	}
	sort.Slice(byAge, func(i, j int) bool { return byAge[i].storedAt.Before(byAge[j].storedAt) })
	for _, a := range byAge {
		if len(c.entries) <= c.maxEntries {
			break
		}
		delete(c.entries, a.key)
	}
}
