package query

import "github.com/hupe1980/arbordb/forest"

// project resolves a field-only path in every tree of f and returns the
// values as a column. Trees where the path does not resolve (a segment
// is absent, or an intermediate node is not an object) yield missing
// slots; resolved nulls yield null slots.
func project(f *forest.Forest, segs []PathSeg) *Column {
	col := newColumn(f.TreeCount())

	// Dictionary IDs are dataset-global, so each segment resolves to at
	// most one key ID for the whole batch. An unknown key means the
	// field occurs nowhere in the dataset.
	ids := make([]uint32, len(segs))
	for i, seg := range segs {
		id, ok := f.Dict.Lookup(seg.Field)
		if !ok {
			for t := range col.cells {
				col.cells[t] = missingCell
			}
			return col
		}
		ids[i] = id
	}

	for t := 0; t < f.TreeCount(); t++ {
		node := f.Roots[t]
		found := true
		for _, id := range ids {
			child, ok := f.Child(node, id)
			if !ok {
				found = false
				break
			}
			node = child
		}
		if !found {
			col.cells[t] = missingCell
			continue
		}
		col.cells[t] = nodeCell(f, node)
	}
	return col
}

// nodeCell reads one node as a dynamic cell. Containers are not scalar
// operands and read as null.
func nodeCell(f *forest.Forest, i uint32) cell {
	d0 := f.Data0[i]
	switch forest.Kind(f.Kinds[i]) {
	case forest.KindBool:
		if !f.Pools.Bool.IsValid(d0) {
			return nullCell
		}
		return boolCell(f.Pools.Bool.Values[d0])
	case forest.KindInt:
		if !f.Pools.Int.IsValid(d0) {
			return nullCell
		}
		return numCell(TInt, float64(f.Pools.Int.Values[d0]))
	case forest.KindFloat:
		if !f.Pools.Float.IsValid(d0) {
			return nullCell
		}
		return numCell(TFloat, f.Pools.Float.Values[d0])
	case forest.KindString:
		if !f.Pools.Str.IsValid(d0) {
			return nullCell
		}
		return strCell(f.Pools.Str.Values[d0])
	case forest.KindDate:
		if !f.Pools.Date.IsValid(d0) {
			return nullCell
		}
		return numCell(TDate, float64(f.Pools.Date.Values[d0]))
	case forest.KindDatetime:
		if !f.Pools.Datetime.IsValid(d0) {
			return nullCell
		}
		return numCell(TDatetime, float64(f.Pools.Datetime.Values[d0]))
	case forest.KindDuration:
		if !f.Pools.Duration.IsValid(d0) {
			return nullCell
		}
		return numCell(TDuration, float64(f.Pools.Duration.Values[d0]))
	case forest.KindBinary:
		if !f.Pools.Binary.IsValid(d0) {
			return nullCell
		}
		return binCell(f.Pools.Binary.Values[d0])
	case forest.KindInterned:
		s, ok := f.Dict.At(d0)
		if !ok {
			return nullCell
		}
		return strCell(s)
	default:
		return nullCell
	}
}
