package manager

import (
	"strings"
	"sync"
	"time"
)

// entry wraps a cached payload with its fetch time and source vendor.
type entry[T any] struct {
	data   T
	ts     time.Time
	source string
}

// ttlCache is a keyed in-memory store with lazy expiry: every read
// checks the entry's age, so no sweeper goroutine is needed. An entry
// aged exactly TTL is already considered expired.
type ttlCache[T any] struct {
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]entry[T]

	now func() time.Time
}

func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	return &ttlCache[T]{
		ttl:   ttl,
		items: make(map[string]entry[T]),
		now:   time.Now,
	}
}

func (c *ttlCache[T]) get(key string) (data T, source string, ok bool) {
	c.mu.RLock()
	e, found := c.items[key]
	c.mu.RUnlock()
	if !found || c.now().Sub(e.ts) >= c.ttl {
		var zero T
		return zero, "", false
	}
	return e.data, e.source, true
}

func (c *ttlCache[T]) put(key string, data T, source string) {
	c.mu.Lock()
	c.items[key] = entry[T]{data: data, ts: c.now(), source: source}
	c.mu.Unlock()
}

func (c *ttlCache[T]) delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *ttlCache[T]) deletePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

func (c *ttlCache[T]) clear() {
	c.mu.Lock()
	c.items = make(map[string]entry[T])
	c.mu.Unlock()
}
