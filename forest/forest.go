// Package forest provides the in-memory data model for tree datasets:
// a columnar node arena, typed value pools, and the dataset-global
// string dictionary.
//
// Nodes are stored in depth-first order, one contiguous span per tree,
// with trees laid out in root order. Builders and decoders both maintain
// this invariant; the slicer and the query engine rely on it.
package forest

// Kind is the type tag of a node.
type Kind uint32

const (
	// KindNull is an untyped null scalar.
	KindNull Kind = iota
	// KindBool is a boolean scalar backed by the bool pool.
	KindBool
	// KindInt is a 64-bit integer scalar backed by the int64 pool.
	KindInt
	// KindFloat is a 64-bit float scalar backed by the float64 pool.
	KindFloat
	// KindString is a string scalar backed by the string pool.
	KindString
	// KindDate is a 32-bit date (days since epoch) backed by the date pool.
	KindDate
	// KindDatetime is a microsecond timestamp backed by the datetime pool.
	KindDatetime
	// KindDuration is a microsecond duration backed by the duration pool.
	KindDuration
	// KindBinary is a byte-string scalar backed by the binary pool.
	KindBinary
	// KindInterned is a string scalar stored as a dictionary ID in data0.
	// Unlike KindString it does not touch the string pool; the ID is
	// dataset-global and survives slicing unchanged.
	KindInterned
	// KindArray is an ordered container; data0 holds the child count.
	KindArray
	// KindObject is a keyed container; data0 holds the child count and
	// children are ordered by their key dictionary ID (data1).
	KindObject

	numKinds
)

// NoParent marks a root node's parent slot.
const NoParent = ^uint32(0)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindDatetime:
		return "datetime"
	case KindDuration:
		return "duration"
	case KindBinary:
		return "binary"
	case KindInterned:
		return "interned"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Valid reports whether k is a defined node kind.
func (k Kind) Valid() bool { return k < numKinds }

// IsScalar reports whether k is a leaf kind.
func (k Kind) IsScalar() bool { return k != KindArray && k != KindObject }

// IsContainer reports whether k is an array or object.
func (k Kind) IsContainer() bool { return k == KindArray || k == KindObject }

// Forest is an ordered collection of trees over one node arena.
//
// The four node columns are equal length. data0 holds the pool index for
// scalar kinds, the dictionary ID for KindInterned, and the child count
// for containers. data1 holds the member-key dictionary ID when the
// parent is an object, else zero.
type Forest struct {
	Kinds   []uint32
	Parents []uint32
	Data0   []uint32
	Data1   []uint32
	Roots   []uint32
	Pools   Pools
	Dict    *Dictionary
}

// New returns an empty forest with a fresh dictionary.
func New() *Forest {
	return &Forest{Dict: NewDictionary()}
}

// TreeCount returns the number of trees.
func (f *Forest) TreeCount() int { return len(f.Roots) }

// NodeCount returns the number of nodes in the arena.
func (f *Forest) NodeCount() int { return len(f.Kinds) }

// SubtreeEnd returns the index one past the last node of the subtree
// rooted at node i. Nodes are in depth-first order, so a subtree is the
// contiguous span [i, SubtreeEnd(i)).
func (f *Forest) SubtreeEnd(i uint32) uint32 {
	end := i + 1
	if Kind(f.Kinds[i]).IsContainer() {
		for c := uint32(0); c < f.Data0[i]; c++ {
			end = f.SubtreeEnd(end)
		}
	}
	return end
}

// TreeSpan returns the node span [start, end) of tree t.
func (f *Forest) TreeSpan(t int) (uint32, uint32) {
	root := f.Roots[t]
	return root, f.SubtreeEnd(root)
}

// Child returns the node index of the child of object node i whose key
// has dictionary ID key, or false when no such member exists.
func (f *Forest) Child(i uint32, key uint32) (uint32, bool) {
	if Kind(f.Kinds[i]) != KindObject {
		return 0, false
	}
	c := i + 1
	for n := uint32(0); n < f.Data0[i]; n++ {
		if f.Data1[c] == key {
			return c, true
		}
		if f.Data1[c] > key {
			break // children are ordered by key ID
		}
		c = f.SubtreeEnd(c)
	}
	return 0, false
}

func (f *Forest) appendNode(kind Kind, parent, d0, d1 uint32) uint32 {
	idx := uint32(len(f.Kinds))
	f.Kinds = append(f.Kinds, uint32(kind))
	f.Parents = append(f.Parents, parent)
	f.Data0 = append(f.Data0, d0)
	f.Data1 = append(f.Data1, d1)
	return idx
}
