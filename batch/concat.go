package batch

import (
	"github.com/hupe1980/arbordb/forest"
)

// Concat materializes batches into one owned forest by remapping node
// ids, pool indices, and root offsets through running sums of the prior
// batches' sizes. The dictionary is shared, so dictionary IDs need no
// merge.
func Concat(batches []*Batch, dict *forest.Dictionary) *forest.Forest {
	out := &forest.Forest{Dict: dict}
	if dict == nil {
		out.Dict = forest.NewDictionary()
	}

	var poolBase [8]uint32
	for _, b := range batches {
		nodeBase := uint32(out.NodeCount())

		for i := range b.Kinds {
			kind := forest.Kind(b.Kinds[i])
			parent := b.Parents[i]
			if parent != forest.NoParent {
				parent += nodeBase
			}
			d0 := b.Data0[i]
			if p, ok := poolOf(kind); ok {
				d0 += poolBase[p]
			}
			out.Kinds = append(out.Kinds, b.Kinds[i])
			out.Parents = append(out.Parents, parent)
			out.Data0 = append(out.Data0, d0)
			out.Data1 = append(out.Data1, b.Data1[i])
		}

		for _, r := range b.Roots {
			out.Roots = append(out.Roots, r+nodeBase)
		}

		mergeBoolPool(&out.Pools.Bool, &b.Pools.Bool)
		mergeInt64Pool(&out.Pools.Int, &b.Pools.Int)
		mergeFloat64Pool(&out.Pools.Float, &b.Pools.Float)
		mergeStringPool(&out.Pools.Str, &b.Pools.Str)
		mergeInt32Pool(&out.Pools.Date, &b.Pools.Date)
		mergeInt64Pool(&out.Pools.Datetime, &b.Pools.Datetime)
		mergeInt64Pool(&out.Pools.Duration, &b.Pools.Duration)
		mergeBytesPool(&out.Pools.Binary, &b.Pools.Binary)

		poolBase[poolBool] = uint32(out.Pools.Bool.Len())
		poolBase[poolInt] = uint32(out.Pools.Int.Len())
		poolBase[poolFloat] = uint32(out.Pools.Float.Len())
		poolBase[poolStr] = uint32(out.Pools.Str.Len())
		poolBase[poolDate] = uint32(out.Pools.Date.Len())
		poolBase[poolDatetime] = uint32(out.Pools.Datetime.Len())
		poolBase[poolDuration] = uint32(out.Pools.Duration.Len())
		poolBase[poolBinary] = uint32(out.Pools.Binary.Len())
	}
	return out
}

func mergeBoolPool(dst, src *forest.BoolPool) {
	for i := range src.Values {
		dst.Add(src.Values[i], !src.IsValid(uint32(i)))
	}
}

func mergeInt64Pool(dst, src *forest.Int64Pool) {
	for i := range src.Values {
		dst.Add(src.Values[i], !src.IsValid(uint32(i)))
	}
}

func mergeFloat64Pool(dst, src *forest.Float64Pool) {
	for i := range src.Values {
		dst.Add(src.Values[i], !src.IsValid(uint32(i)))
	}
}

func mergeStringPool(dst, src *forest.StringPool) {
	for i := range src.Values {
		dst.Add(src.Values[i], !src.IsValid(uint32(i)))
	}
}

func mergeInt32Pool(dst, src *forest.Int32Pool) {
	for i := range src.Values {
		dst.Add(src.Values[i], !src.IsValid(uint32(i)))
	}
}

func mergeBytesPool(dst, src *forest.BytesPool) {
	for i := range src.Values {
		dst.Add(src.Values[i], !src.IsValid(uint32(i)))
	}
}
