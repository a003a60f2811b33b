package thumb

import (
	"container/list"
	"sync"

	"github.com/tannerhall/assetview/internal/debug"
)

// Key identifies one rendered thumbnail. ModTime is part of the key so
// a modified file naturally misses; stale entries for old timestamps
// linger until capacity eviction pushes them out.
type Key struct {
	Path    string
	Size    int
	ModTime int64 // UnixNano of the source file's mtime
}

// Cache is a bounded mapping from thumbnail keys to encoded image
// bytes. Eviction is insertion-ordered (FIFO), not access-ordered:
// repeated hits do not refresh an entry's position.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*cacheEntry
	order   *list.List // Front = oldest inserted
	max     int
}

type cacheEntry struct {
	key     Key
	data    []byte
	element *list.Element
}

// NewCache creates a cache bounded to max entries.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = 100
	}
	return &Cache{
		entries: make(map[Key]*cacheEntry),
		order:   list.New(),
		max:     max,
	}
}

// Get returns the cached bytes for key, if resident.
func (c *Cache) Get(key Key) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.data, true
}

// Put inserts bytes under key, evicting oldest-inserted entries once
// the bound is exceeded. Re-putting an existing key replaces its bytes
// without refreshing its eviction position.
func (c *Cache) Put(key Key, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.data = data
		return
	}

	entry := &cacheEntry{key: key, data: data}
	entry.element = c.order.PushBack(entry)
	c.entries[key] = entry

	for len(c.entries) > c.max {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		old := oldest.Value.(*cacheEntry)
		delete(c.entries, old.key)
		c.order.Remove(oldest)
		debug.Log(debug.THUMB, "Cache: evicted %s@%d", old.key.Path, old.key.Size)
	}
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
