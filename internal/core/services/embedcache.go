package services

import (
	"container/list"
	"sync"
)

// embedCache is an LRU cache for embeddings keyed by role and text.
// It lets an ingestion run avoid re-embedding boilerplate repeated across
// documents (headers, disclaimers) without unbounded memory growth.
type embedCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
}

type embedCacheEntry struct {
	key   string
	value []float32
}

func newEmbedCache(capacity int) *embedCache {
	return &embedCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// get returns the cached vector for key if present.
func (c *embedCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*embedCacheEntry).value, true
}

// set stores the vector for key, evicting the oldest entry if at capacity.
func (c *embedCache) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*embedCacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&embedCacheEntry{key: key, value: value})
	c.entries[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*embedCacheEntry).key)
		}
	}
}

// len returns the number of cached entries.
func (c *embedCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
