package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/akumuli/codec"
)

func chunkOf(n int) codec.Chunk {
	samples := make([]akumuli.Sample, n)
	for i := range samples {
		samples[i] = akumuli.Sample{ParamID: 1, Timestamp: uint64(i), Value: float64(i)}
	}
	return codec.Chunk{Samples: samples}
}

func TestChunkCacheGetPut(t *testing.T) {
	c := New(1 << 20)
	key := Key{PageID: 1, BeginOffset: 100}

	_, ok := c.Get(key)
	require.False(t, ok)
	require.False(t, c.Contains(key))

	chunk := chunkOf(10)
	c.Put(key, chunk)

	require.True(t, c.Contains(key))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, chunk, got)
}

func TestChunkCacheFIFOEviction(t *testing.T) {
	// Each chunk of 10 samples costs 240 bytes; bound the cache to fit
	// exactly two.
	c := New(240 * 2)

	k1 := Key{PageID: 1, BeginOffset: 0}
	k2 := Key{PageID: 1, BeginOffset: 100}
	k3 := Key{PageID: 1, BeginOffset: 200}

	c.Put(k1, chunkOf(10))
	c.Put(k2, chunkOf(10))
	require.True(t, c.Contains(k1))
	require.True(t, c.Contains(k2))

	// Inserting a third evicts the oldest (k1), per T5.
	c.Put(k3, chunkOf(10))
	assert.False(t, c.Contains(k1))
	assert.True(t, c.Contains(k2))
	assert.True(t, c.Contains(k3))

	assert.LessOrEqual(t, c.Size(), int64(480))
}

func TestChunkCacheNeverExceedsLimit(t *testing.T) {
	c := New(1000)
	for i := 0; i < 50; i++ {
		c.Put(Key{PageID: 1, BeginOffset: uint32(i)}, chunkOf(5))
		assert.LessOrEqual(t, c.Size(), int64(1000))
	}
}

func TestChunkCacheOverwriteSameKey(t *testing.T) {
	c := New(1 << 20)
	key := Key{PageID: 1, BeginOffset: 0}

	c.Put(key, chunkOf(5))
	sizeAfterFirst := c.Size()
	c.Put(key, chunkOf(5))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, sizeAfterFirst, c.Size())
}
