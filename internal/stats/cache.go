package stats

import (
	"sync"
	"time"
)

type cacheEntry struct {
	stats     Stats
	expiresAt time.Time
}

// cacheStore keeps one Stats value per key until its TTL passes.
type cacheStore struct {
	mu    sync.Mutex
	items map[string]cacheEntry
}

func newCache() *cacheStore {
	return &cacheStore{items: make(map[string]cacheEntry)}
}

func (c *cacheStore) Get(key string, now time.Time) (Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		return Stats{}, false
	}
	if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		delete(c.items, key)
		return Stats{}, false
	}
	return entry.stats, true
}

func (c *cacheStore) Set(key string, s Stats, ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = cacheEntry{stats: s, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}
