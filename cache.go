package rewardboard

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// ttlCache is an LRU whose entries also expire after ttl. A nil cache is a
// valid no-op cache.
type ttlCache[V any] struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	store *lru.Cache[string, cacheEntry[V]]
}

func newTTLCache[V any](maxEntries int, ttl time.Duration) *ttlCache[V] {
	if maxEntries <= 0 {
		return nil
	}
	store, err := lru.New[string, cacheEntry[V]](maxEntries)
	if err != nil {
		return nil
	}
	return &ttlCache[V]{
		ttl:   ttl,
		now:   time.Now,
		store: store,
	}
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || key == "" {
		return zero, false
	}
	c.mu.RLock()
	entry, ok := c.store.Get(key)
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		c.store.Remove(key)
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[V]) Add(key string, value V) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.store.Add(key, cacheEntry[V]{value: value, storedAt: c.now()})
	c.mu.Unlock()
}

func (c *ttlCache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Len()
}

// PurgeExpired drops every entry older than the ttl.
func (c *ttlCache[V]) PurgeExpired(now time.Time) int {
	if c == nil || c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for _, key := range c.store.Keys() {
		entry, ok := c.store.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(entry.storedAt) > c.ttl {
			c.store.Remove(key)
			purged++
		}
	}
	return purged
}
