package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/forest"
)

func makeBatch(t *testing.T, trees int) *batch.Batch {
	t.Helper()
	f := forest.New()
	for i := 0; i < trees; i++ {
		f.Append(forest.Object(forest.F("v", forest.Int(int64(i)))))
	}
	return batch.Slice(f, 0, trees)
}

func TestGetSet(t *testing.T) {
	c := New(1 << 20)
	key := Key{Name: "ds", Generation: 1, Batch: 0}

	_, ok := c.Get(key)
	assert.False(t, ok)

	b := makeBatch(t, 4)
	c.Set(key, b)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Same(t, b, got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestSetExistingIsNoop(t *testing.T) {
	c := New(1 << 20)
	key := Key{Name: "ds", Generation: 1, Batch: 0}

	b1 := makeBatch(t, 4)
	c.Set(key, b1)
	c.Set(key, makeBatch(t, 4))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Same(t, b1, got, "first decode wins, no duplicate entries")
	assert.Equal(t, 1, c.Len())
}

func TestEvictionByBytes(t *testing.T) {
	b := makeBatch(t, 8)
	// Room for two entries but not three.
	c := New(b.SizeBytes()*2 + 1)

	c.Set(Key{Name: "ds", Generation: 1, Batch: 0}, b)
	c.Set(Key{Name: "ds", Generation: 1, Batch: 1}, makeBatch(t, 8))

	// Touch batch 0 so batch 1 is the eviction candidate.
	_, ok := c.Get(Key{Name: "ds", Generation: 1, Batch: 0})
	require.True(t, ok)

	c.Set(Key{Name: "ds", Generation: 1, Batch: 2}, makeBatch(t, 8))

	_, ok = c.Get(Key{Name: "ds", Generation: 1, Batch: 0})
	assert.True(t, ok)
	_, ok = c.Get(Key{Name: "ds", Generation: 1, Batch: 1})
	assert.False(t, ok, "LRU entry must be evicted")
	_, ok = c.Get(Key{Name: "ds", Generation: 1, Batch: 2})
	assert.True(t, ok)
}

func TestOversizedEntryNotCached(t *testing.T) {
	b := makeBatch(t, 8)
	c := New(b.SizeBytes() - 1)
	c.Set(Key{Name: "ds", Generation: 1, Batch: 0}, b)
	assert.Equal(t, 0, c.Len())
}

func TestInvalidateStaleGenerations(t *testing.T) {
	c := New(1 << 20)
	c.Set(Key{Name: "a", Generation: 1, Batch: 0}, makeBatch(t, 2))
	c.Set(Key{Name: "a", Generation: 1, Batch: 1}, makeBatch(t, 2))
	c.Set(Key{Name: "a", Generation: 2, Batch: 0}, makeBatch(t, 2))
	c.Set(Key{Name: "b", Generation: 1, Batch: 0}, makeBatch(t, 2))

	dropped := c.Invalidate("a", 2)
	assert.Equal(t, 2, dropped)

	_, ok := c.Get(Key{Name: "a", Generation: 1, Batch: 0})
	assert.False(t, ok, "stale generation must never be served")
	_, ok = c.Get(Key{Name: "a", Generation: 2, Batch: 0})
	assert.True(t, ok)
	_, ok = c.Get(Key{Name: "b", Generation: 1, Batch: 0})
	assert.True(t, ok, "other datasets unaffected")

	dropped = c.Invalidate("b", 0)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, c.Len())
}

func TestPurge(t *testing.T) {
	c := New(1 << 20)
	c.Set(Key{Name: "a", Generation: 1, Batch: 0}, makeBatch(t, 2))
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Size())
}
