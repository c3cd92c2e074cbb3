package discovery

import (
	"context"
	"sync"
	"time"

	"sparql-agent-go/pkg/types"
)

// keyLock gives each cache key its own mutex so a refresh for one endpoint
// never blocks reads of another, while still serializing concurrent
// refreshes of the same endpoint (spec §5: "the cache is updated atomically
// (check-then-set with a per-key lock); readers may observe a previous
// value during a refresh"). Adapted from the teacher's LRUManager, which
// guards its whole session map with one RWMutex -- this module narrows that
// to per-endpoint locks since capability refreshes are comparatively
// expensive (a full C3 probe run) and independent across endpoints.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLock) lockFor(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// Cache is the capability cache consumed by the Orchestrator (C9) for
// grounding and populated by C1-C4 running independently. Its interface is
// deliberately narrow per the spec's Design Notes: only GetOrRefresh.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*types.CacheEntry
	keys    *keyLock
	ttl     time.Duration
}

// NewCache builds a capability cache with the given default TTL (spec §6
// "Persisted state" default is 24h; callers may pass a shorter TTL for
// tests).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{entries: make(map[string]*types.CacheEntry), keys: newKeyLock(), ttl: ttl}
}

// GetOrRefresh returns the cached Capabilities for endpoint if present and
// fresh; otherwise it calls refresh (typically a C3 Detect call) under the
// endpoint's key lock and stores the result. A concurrent reader for a
// different endpoint is never blocked; a concurrent reader for the same
// endpoint whose entry is missing or stale waits on the key lock and then
// returns the value the in-flight refresh stored.
func (c *Cache) GetOrRefresh(ctx context.Context, endpoint types.Endpoint, refresh func(ctx context.Context) (*types.Capabilities, error)) (*types.Capabilities, error) {
	if entry, ok := c.peek(endpoint.URL); ok && !entry.Stale(time.Now()) {
		return entry.Capabilities, nil
	}

	lock := c.keys.lockFor(endpoint.URL)
	lock.Lock()
	defer lock.Unlock()

	// Re-check after acquiring the lock: another goroutine may have just
	// finished refreshing this same endpoint.
	if entry, ok := c.peek(endpoint.URL); ok && !entry.Stale(time.Now()) {
		return entry.Capabilities, nil
	}

	caps, err := refresh(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[endpoint.URL] = &types.CacheEntry{Capabilities: caps, GeneratedAt: time.Now(), TTL: c.ttl}
	c.mu.Unlock()

	return caps, nil
}

func (c *Cache) peek(key string) (*types.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Invalidate forces the next GetOrRefresh for endpoint to re-probe.
func (c *Cache) Invalidate(endpointURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, endpointURL)
}
