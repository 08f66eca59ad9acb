package auth

import (
	"container/list"
	"sync"
	"time"
)

// No pack example provides an in-process bounded LRU; container/list is the
// standard idiom for one, so validationCache is the one piece of this
// package built directly on the standard library rather than a pack
// dependency (§4.8.3, §5: "the authentication cache is process-wide,
// lock-protected, bounded in size").
type cacheEntry struct {
	key       string
	result    Context
	cachedAt  time.Time
}

// validationCache is a bounded, process-wide LRU of recent token
// validations, with a soft TTL: an entry past its TTL is still returned
// (avoiding a store round-trip on every request) but is marked stale so the
// caller can choose to revalidate in the background.
type validationCache struct {
	mu       sync.Mutex
	ll       *list.List
	items    map[string]*list.Element
	capacity int
	ttl      time.Duration
}

func newValidationCache(capacity int, ttl time.Duration) *validationCache {
	return &validationCache{
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the cached Context for key and whether it is still fresh
// (within ttl). A hit always promotes the entry to most-recently-used,
// fresh or not.
func (c *validationCache) Get(key string, now time.Time) (ctx Context, fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.items[key]
	if !found {
		return Context{}, false, false
	}
	c.ll.MoveToFront(el)
	entry := el.Value.(*cacheEntry)
	return entry.result, now.Sub(entry.cachedAt) < c.ttl, true
}

// Put inserts or refreshes key's cached Context, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *validationCache) Put(key string, ctx Context, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, found := c.items[key]; found {
		el.Value.(*cacheEntry).result = ctx
		el.Value.(*cacheEntry).cachedAt = now
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, result: ctx, cachedAt: now})
	c.items[key] = el

	if c.capacity > 0 && c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Invalidate removes key from the cache, used when a key is revoked.
func (c *validationCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, found := c.items[key]; found {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}
