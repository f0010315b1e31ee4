package sstable

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// BlockCache is the process-wide, bounded LRU of decoded data-block bytes
// shared by every reader. Capacity is an entry count, not a byte budget —
// matching the spec's "configured maximum entry count" rather than the
// teacher's shard-by-bytes scheme, since block sizes here are uniform
// (~4 KiB) and counting entries is simpler and just as effective.
//
// Concurrent misses on the same key are coalesced through a
// singleflight.Group, so goroutines whose misses overlap an in-flight load
// share that one load. A goroutine that saw the miss just before the first
// load finished and joins after it returned starts one more load.
type BlockCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[uint64]*list.Element

	group singleflight.Group
}

type cacheEntry struct {
	key   uint64
	path  string
	value []byte
}

// NewBlockCache creates a cache holding at most capacity blocks.
func NewBlockCache(capacity int) *BlockCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &BlockCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

// CacheKey derives a block's cache key from its file path and byte offset.
// Filenames are unique for the lifetime of a file and IDs are monotonic, so
// this never collides across a delete-and-recreate cycle.
func CacheKey(path string, offset uint64) uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s:%d", path, offset)
	return h.Sum64()
}

// GetOrLoad returns the cached bytes for key, calling loader on a miss.
// Concurrent GetOrLoad calls for the same key share one loader invocation.
func (c *BlockCache) GetOrLoad(path string, offset uint64, loader func() ([]byte, error)) ([]byte, error) {
	key := CacheKey(path, offset)

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		value := elem.Value.(*cacheEntry).value
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	// singleflight keys are strings; the cache key is already collision-
	// resistant so it doubles as the dedup key.
	v, err, _ := c.group.Do(fmt.Sprintf("%d", key), func() (interface{}, error) {
		value, err := loader()
		if err != nil {
			return nil, err
		}
		c.put(key, path, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *BlockCache) put(key uint64, path string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*cacheEntry).value = value
		c.ll.MoveToFront(elem)
		return
	}

	elem := c.ll.PushFront(&cacheEntry{key: key, path: path, value: value})
	c.items[key] = elem

	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *BlockCache) evictOldest() {
	elem := c.ll.Back()
	if elem == nil {
		return
	}
	c.ll.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).key)
}

// Invalidate removes every cached block belonging to path. Callers must
// invoke this right before deleting the underlying file, so a later
// allocation reusing a fresh ID never observes stale bytes.
func (c *BlockCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.items {
		if elem.Value.(*cacheEntry).path == path {
			c.ll.Remove(elem)
			delete(c.items, key)
		}
	}
}

// Len reports the number of blocks currently cached, for tests and metrics.
func (c *BlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
