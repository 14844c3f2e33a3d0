package embedding

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheEntryOverheadBytes = 96

// cacheEntry is one cached embedding with its insertion time and an estimate
// of its memory footprint (8 bytes per component plus fixed overhead).
type cacheEntry struct {
	vector    []float32
	storedAt  time.Time
	sizeBytes int64
}

// vectorCache is a TTL-aware LRU cache bounded both by entry count and by an
// estimated byte budget. The mutex protects only the map structure; callers
// must never hold it across model calls.
type vectorCache struct {
	mu        sync.Mutex
	entries   *lru.Cache[string, *cacheEntry]
	ttl       time.Duration
	maxBytes  int64
	currBytes int64

	now func() time.Time // test hook
}

func newVectorCache(maxSize int, maxMemoryMB int, ttl time.Duration) (*vectorCache, error) {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if maxMemoryMB <= 0 {
		maxMemoryMB = DefaultCacheMemoryMB
	}

	c := &vectorCache{
		ttl:      ttl,
		maxBytes: int64(maxMemoryMB) * 1024 * 1024,
		now:      time.Now,
	}

	entries, err := lru.NewWithEvict[string, *cacheEntry](maxSize, func(_ string, e *cacheEntry) {
		c.currBytes -= e.sizeBytes
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Get returns the cached vector for key, or (nil, false) on miss. Expired
// entries are removed lazily on read.
func (c *vectorCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.vector, true
}

// Put inserts a vector, evicting least-recently-used entries until both the
// count bound (enforced by the LRU itself) and the byte budget hold.
func (c *vectorCache) Put(key string, vector []float32) {
	entry := &cacheEntry{
		vector:    vector,
		storedAt:  c.now(),
		sizeBytes: int64(len(vector))*8 + cacheEntryOverheadBytes,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries.Peek(key); ok {
		c.currBytes -= old.sizeBytes
	}
	c.entries.Add(key, entry)
	c.currBytes += entry.sizeBytes

	for c.currBytes > c.maxBytes && c.entries.Len() > 0 {
		c.entries.RemoveOldest()
	}
}

// Len returns the current entry count.
func (c *vectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// SizeBytes returns the estimated memory footprint of all live entries.
func (c *vectorCache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currBytes
}

// Purge drops all entries.
func (c *vectorCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.currBytes = 0
}
