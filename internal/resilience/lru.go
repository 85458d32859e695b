package resilience

import (
	"container/list"
	"sync"
)

// DefaultCacheCapacity bounds the embedding cache. Entries are small
// (one vector each), so a few thousand keeps memory flat.
const DefaultCacheCapacity = 2000

// Cache is a bounded, mutex-guarded LRU cache. Get refreshes recency;
// Put evicts the single least-recently-used entry once capacity is
// exceeded. Entries have no TTL: correctness depends only on key
// identity, which never changes meaning.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry[K comparable, V any] struct {
	key   K
	value V
}

// NewCache creates a Cache holding at most capacity entries.
// A capacity <= 0 falls back to DefaultCacheCapacity.
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached value for key and refreshes its recency.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(cacheEntry[K, V]).value, true
}

// Put stores value under key, evicting the least-recently-used entry
// when the cache is full. Storing an existing key refreshes it.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = cacheEntry[K, V]{key: key, value: value}
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(cacheEntry[K, V]{key: key, value: value})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(cacheEntry[K, V]).key)
	}
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
