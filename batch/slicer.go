package batch

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/arbordb/forest"
)

// Slice extracts trees [start, end) of f into a batch with batch-local
// node and pool indices. Dictionary IDs pass through unchanged; the
// batch borrows f's dictionary.
//
// Nodes are collected depth first from each local root; pool entries
// are copied deduplicated in ascending source order, so relative pool
// order is preserved within a batch. Cost is linear in the batch's node
// and pool-entry count.
func Slice(f *forest.Forest, start, end int) *Batch {
	b := &Batch{}
	b.Dict = f.Dict

	// Pass 1: collect reachable nodes and the pool indices their data
	// slots reference, one bitmap per pool type.
	var refs [8]*roaring.Bitmap
	for i := range refs {
		refs[i] = roaring.New()
	}
	var order []uint32
	nodeMap := make(map[uint32]uint32)
	for t := start; t < end; t++ {
		lo, hi := f.TreeSpan(t)
		for i := lo; i < hi; i++ {
			nodeMap[i] = uint32(len(order))
			order = append(order, i)
			if p, ok := poolOf(forest.Kind(f.Kinds[i])); ok {
				refs[p].Add(f.Data0[i])
			}
		}
	}

	// Pass 2: copy the referenced pool entries in ascending order.
	copyBoolPool(&b.Pools.Bool, &f.Pools.Bool, refs[poolBool])
	copyInt64Pool(&b.Pools.Int, &f.Pools.Int, refs[poolInt])
	copyFloat64Pool(&b.Pools.Float, &f.Pools.Float, refs[poolFloat])
	copyStringPool(&b.Pools.Str, &f.Pools.Str, refs[poolStr])
	copyInt32Pool(&b.Pools.Date, &f.Pools.Date, refs[poolDate])
	copyInt64Pool(&b.Pools.Datetime, &f.Pools.Datetime, refs[poolDatetime])
	copyInt64Pool(&b.Pools.Duration, &f.Pools.Duration, refs[poolDuration])
	copyBytesPool(&b.Pools.Binary, &f.Pools.Binary, refs[poolBinary])

	// Pass 3: rewrite the node columns through the maps. The new pool
	// index of an old entry is its rank in the reference bitmap.
	b.Kinds = make([]uint32, len(order))
	b.Parents = make([]uint32, len(order))
	b.Data0 = make([]uint32, len(order))
	b.Data1 = make([]uint32, len(order))
	for newIdx, old := range order {
		kind := forest.Kind(f.Kinds[old])
		b.Kinds[newIdx] = f.Kinds[old]
		if f.Parents[old] == forest.NoParent {
			b.Parents[newIdx] = forest.NoParent
		} else {
			b.Parents[newIdx] = nodeMap[f.Parents[old]]
		}
		d0 := f.Data0[old]
		if p, ok := poolOf(kind); ok {
			d0 = uint32(refs[p].Rank(d0) - 1)
		}
		b.Data0[newIdx] = d0
		b.Data1[newIdx] = f.Data1[old] // key dictionary ID, global
	}

	b.Roots = make([]uint32, 0, end-start)
	for t := start; t < end; t++ {
		b.Roots = append(b.Roots, nodeMap[f.Roots[t]])
	}
	return b
}

// Pool slot numbering, frozen by the wire format.
const (
	poolBool = iota
	poolInt
	poolFloat
	poolStr
	poolDate
	poolDatetime
	poolDuration
	poolBinary
)

// poolOf maps a node kind to its pool slot. Container, null, and
// interned kinds have no pool: their data slots hold child counts or
// dictionary IDs.
func poolOf(k forest.Kind) (int, bool) {
	switch k {
	case forest.KindBool:
		return poolBool, true
	case forest.KindInt:
		return poolInt, true
	case forest.KindFloat:
		return poolFloat, true
	case forest.KindString:
		return poolStr, true
	case forest.KindDate:
		return poolDate, true
	case forest.KindDatetime:
		return poolDatetime, true
	case forest.KindDuration:
		return poolDuration, true
	case forest.KindBinary:
		return poolBinary, true
	default:
		return 0, false
	}
}

func copyBoolPool(dst, src *forest.BoolPool, refs *roaring.Bitmap) {
	it := refs.Iterator()
	for it.HasNext() {
		i := it.Next()
		dst.Add(src.Values[i], !src.IsValid(i))
	}
}

func copyInt64Pool(dst, src *forest.Int64Pool, refs *roaring.Bitmap) {
	it := refs.Iterator()
	for it.HasNext() {
		i := it.Next()
		dst.Add(src.Values[i], !src.IsValid(i))
	}
}

func copyFloat64Pool(dst, src *forest.Float64Pool, refs *roaring.Bitmap) {
	it := refs.Iterator()
	for it.HasNext() {
		i := it.Next()
		dst.Add(src.Values[i], !src.IsValid(i))
	}
}

func copyStringPool(dst, src *forest.StringPool, refs *roaring.Bitmap) {
	it := refs.Iterator()
	for it.HasNext() {
		i := it.Next()
		dst.Add(src.Values[i], !src.IsValid(i))
	}
}

func copyInt32Pool(dst, src *forest.Int32Pool, refs *roaring.Bitmap) {
	it := refs.Iterator()
	for it.HasNext() {
		i := it.Next()
		dst.Add(src.Values[i], !src.IsValid(i))
	}
}

func copyBytesPool(dst, src *forest.BytesPool, refs *roaring.Bitmap) {
	it := refs.Iterator()
	for it.HasNext() {
		i := it.Next()
		dst.Add(src.Values[i], !src.IsValid(i))
	}
}
