// Package cache implements the Chunk Cache (spec §4.5): a process-wide,
// byte-bounded map from chunk key to decoded chunk, evicted FIFO. It sits
// in front of Page.Search's chunk decode path so repeatedly-scanned
// chunks skip re-decoding and re-CRC'ing.
package cache

import (
	"container/list"
	"sync"

	"github.com/embeddb/akumuli/internal/akumuli/codec"
)

// Key identifies one chunk: the page it lives in plus the begin offset of
// its encoded bytes, which is stable for the chunk's lifetime (a chunk is
// never rewritten in place).
type Key struct {
	PageID      uint32
	BeginOffset uint32
}

type entry struct {
	key   Key
	chunk codec.Chunk
	size  int64
}

// ChunkCache is a single-mutex, FIFO-evicted, byte-bounded cache (spec
// §4.5). Inconsistency between the FIFO list and the map is a bug, never
// a recoverable condition — both are mutated together under the same
// lock, so it cannot arise from correct use of the exported API.
type ChunkCache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	order    *list.List // front = oldest
	index    map[Key]*list.Element
}

// New constructs a cache bounded by maxBytes (spec §6 max_cache_size).
func New(maxBytes int64) *ChunkCache {
	return &ChunkCache{
		maxBytes: maxBytes,
		order:    list.New(),
		index:    make(map[Key]*list.Element),
	}
}

// chunkSize estimates a decoded chunk's resident size: one Sample (24
// bytes: 8 paramid, 8 timestamp, 8 value) plus 8 bytes per optional
// length/offset pair, per element. This is an estimate for cache
// accounting, not a wire size — the codec's on-disk encoding is far more
// compact.
func chunkSize(c codec.Chunk) int64 {
	n := int64(len(c.Samples))
	size := n * 24
	if c.Lengths != nil {
		size += n * 8
	}
	return size
}

// Contains reports whether key is currently cached.
func (c *ChunkCache) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key]
	return ok
}

// Get returns the cached chunk for key, if present. It does not alter
// FIFO order — this cache tracks insertion age, not recency of use.
func (c *ChunkCache) Get(key Key) (codec.Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return codec.Chunk{}, false
	}
	return el.Value.(*entry).chunk, true
}

// Put inserts chunk under key, evicting the oldest entries until the new
// total fits within maxBytes (spec §4.5, T5). A chunk larger than
// maxBytes on its own still gets inserted after draining every other
// entry — matching the spec's "drop oldest until it fits or the FIFO is
// empty" wording literally, rather than silently refusing an oversized
// put.
func (c *ChunkCache) Put(key Key, chunk codec.Chunk) {
	size := chunkSize(chunk)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.curBytes -= el.Value.(*entry).size
		c.order.Remove(el)
		delete(c.index, key)
	}

	for c.curBytes+size > c.maxBytes && c.order.Len() > 0 {
		oldest := c.order.Front()
		oe := oldest.Value.(*entry)
		c.order.Remove(oldest)
		delete(c.index, oe.key)
		c.curBytes -= oe.size
	}

	el := c.order.PushBack(&entry{key: key, chunk: chunk, size: size})
	c.index[key] = el
	c.curBytes += size
}

// Size returns the cache's current accounted byte total.
func (c *ChunkCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Len returns the number of chunks currently cached.
func (c *ChunkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
