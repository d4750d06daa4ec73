// Package cache provides the bounded, generation-keyed warm cache of
// decoded batches. Entries are keyed by (dataset, generation, batch
// index); a mutation bumps the generation, so entries from the previous
// generation can never be served again and are dropped eagerly.
//
// Warming is a pure performance hint: a miss is not an error, and
// cached batches must be owned decodes, never view-backed ones, since
// the cache outlives any read transaction.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/arbordb/batch"
)

// Key identifies one decoded batch of one dataset generation.
type Key struct {
	Name       string
	Generation uint64
	Batch      uint32
}

// Cache is a byte-bounded LRU over decoded batches.
type Cache struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   Key
	value *batch.Batch
	size  int64
}

// New creates a cache bounded to capacity bytes. A non-positive
// capacity disables caching entirely.
func New(capacity int64) *Cache {
	return &Cache{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
	}
}

// Get returns the cached batch for key, promoting it to most recently
// used.
func (c *Cache) Get(key Key) (*batch.Batch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Contains reports whether key is cached without promoting it or
// touching the hit counters.
func (c *Cache) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Set caches b under key. Re-setting an existing key is a no-op: a
// batch of a given (name, generation, index) is immutable, so the
// first decode wins and no duplicate entry is created.
func (c *Cache) Set(key Key, b *batch.Batch) {
	itemSize := b.SizeBytes()
	if itemSize > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		return
	}

	for c.size+itemSize > c.capacity {
		ent := c.evictList.Back()
		if ent == nil {
			break
		}
		c.removeElement(ent)
	}

	element := c.evictList.PushFront(&entry{key: key, value: b, size: itemSize})
	c.items[key] = element
	c.size += itemSize
}

// Invalidate removes every entry of name whose generation differs from
// keep, and returns how many entries were dropped. Passing keep=0
// drops all generations of name.
func (c *Cache) Invalidate(name string, keep uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for key, element := range c.items {
		if key.Name == name && key.Generation != keep {
			toRemove = append(toRemove, element)
		}
	}
	for _, e := range toRemove {
		c.removeElement(e)
	}
	return len(toRemove)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[Key]*list.Element)
	c.evictList.Init()
	c.size = 0
}

// Size returns the current byte size of the cache.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	ent := e.Value.(*entry)
	delete(c.items, ent.key)
	c.size -= ent.size
}
