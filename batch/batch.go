// Package batch implements the unit of storage and incremental update:
// slicing a forest into contiguous tree ranges with batch-local node and
// pool indices, sizing those ranges against a byte-target policy, and
// concatenating decoded batches back into one owned forest.
package batch

import (
	"github.com/hupe1980/arbordb/forest"
	"github.com/hupe1980/arbordb/pinned"
)

// Batch is a contiguous sub-range of a dataset's trees with batch-local
// node and pool indices. It embeds the forest representation: the node
// columns, roots, and pools are all batch-local, while Dict is borrowed
// from the dataset and shared by every batch.
type Batch struct {
	forest.Forest

	pin *pinned.Bytes
}

// Pin records the pinned byte range a view-backed batch aliases. The
// range is released by Close.
func (b *Batch) Pin(p pinned.Bytes) {
	b.pin = &p
}

// Close releases the pinned bytes of a view-backed batch. It is a no-op
// for owned batches.
func (b *Batch) Close() {
	if b.pin != nil {
		b.pin.Close()
		b.pin = nil
	}
}

// SizeBytes estimates the in-memory footprint, used for cache
// accounting.
func (b *Batch) SizeBytes() int64 {
	return estimateBytes(&b.Forest)
}

func estimateBytes(f *forest.Forest) int64 {
	n := int64(f.NodeCount())*16 + int64(f.TreeCount())*4
	n += int64(f.Pools.Bool.Len())
	n += int64(f.Pools.Int.Len()) * 8
	n += int64(f.Pools.Float.Len()) * 8
	n += int64(f.Pools.Date.Len()) * 4
	n += int64(f.Pools.Datetime.Len()) * 8
	n += int64(f.Pools.Duration.Len()) * 8
	for _, s := range f.Pools.Str.Values {
		n += int64(len(s)) + 4
	}
	for _, v := range f.Pools.Binary.Values {
		n += int64(len(v)) + 4
	}
	return n
}
