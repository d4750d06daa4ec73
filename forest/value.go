package forest

import (
	"bytes"
	"sort"
)

// Value is the dynamic representation of one tree node, used to build
// trees into a forest and to read them back out.
type Value struct {
	Kind Kind

	// Null marks a typed null: the value slot is ignored but the kind
	// (and its pool) is preserved across a round trip.
	Null bool

	Bool   bool
	Int    int64 // KindInt, KindDatetime, KindDuration (microseconds)
	Float  float64
	Str    string // KindString and KindInterned
	Date   int32  // days since epoch
	Bytes  []byte
	Elems  []Value // KindArray
	Fields []Field // KindObject
}

// Field is one member of an object value.
type Field struct {
	Key   string
	Value Value
}

// Convenience constructors.

func Null() Value                  { return Value{Kind: KindNull} }
func Bool(v bool) Value            { return Value{Kind: KindBool, Bool: v} }
func Int(v int64) Value            { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value        { return Value{Kind: KindFloat, Float: v} }
func String(v string) Value        { return Value{Kind: KindString, Str: v} }
func Interned(v string) Value      { return Value{Kind: KindInterned, Str: v} }
func Date(days int32) Value        { return Value{Kind: KindDate, Date: days} }
func Datetime(micros int64) Value  { return Value{Kind: KindDatetime, Int: micros} }
func Duration(micros int64) Value  { return Value{Kind: KindDuration, Int: micros} }
func Binary(v []byte) Value        { return Value{Kind: KindBinary, Bytes: v} }
func Array(elems ...Value) Value   { return Value{Kind: KindArray, Elems: elems} }
func Object(fields ...Field) Value { return Value{Kind: KindObject, Fields: fields} }

// TypedNull returns a null of the given scalar kind.
func TypedNull(k Kind) Value { return Value{Kind: k, Null: true} }

// F is shorthand for building an object field.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Append flattens v into the forest as a new tree and returns its tree
// index. Object members are interned and stored ordered by dictionary ID.
func (f *Forest) Append(v Value) int {
	root := f.appendValue(v, NoParent, 0)
	f.Roots = append(f.Roots, root)
	return len(f.Roots) - 1
}

func (f *Forest) appendValue(v Value, parent, keyID uint32) uint32 {
	switch v.Kind {
	case KindNull:
		return f.appendNode(KindNull, parent, 0, keyID)
	case KindBool:
		return f.appendNode(KindBool, parent, f.Pools.Bool.Add(v.Bool, v.Null), keyID)
	case KindInt:
		return f.appendNode(KindInt, parent, f.Pools.Int.Add(v.Int, v.Null), keyID)
	case KindFloat:
		return f.appendNode(KindFloat, parent, f.Pools.Float.Add(v.Float, v.Null), keyID)
	case KindString:
		return f.appendNode(KindString, parent, f.Pools.Str.Add(v.Str, v.Null), keyID)
	case KindDate:
		return f.appendNode(KindDate, parent, f.Pools.Date.Add(v.Date, v.Null), keyID)
	case KindDatetime:
		return f.appendNode(KindDatetime, parent, f.Pools.Datetime.Add(v.Int, v.Null), keyID)
	case KindDuration:
		return f.appendNode(KindDuration, parent, f.Pools.Duration.Add(v.Int, v.Null), keyID)
	case KindBinary:
		return f.appendNode(KindBinary, parent, f.Pools.Binary.Add(v.Bytes, v.Null), keyID)
	case KindInterned:
		return f.appendNode(KindInterned, parent, f.Dict.Intern(v.Str), keyID)
	case KindArray:
		idx := f.appendNode(KindArray, parent, uint32(len(v.Elems)), keyID)
		for _, e := range v.Elems {
			f.appendValue(e, idx, 0)
		}
		return idx
	case KindObject:
		type member struct {
			id uint32
			v  Value
		}
		members := make([]member, len(v.Fields))
		for i, fld := range v.Fields {
			members[i] = member{id: f.Dict.Intern(fld.Key), v: fld.Value}
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].id < members[j].id })
		idx := f.appendNode(KindObject, parent, uint32(len(members)), keyID)
		for _, m := range members {
			f.appendValue(m.v, idx, m.id)
		}
		return idx
	default:
		return f.appendNode(KindNull, parent, 0, keyID)
	}
}

// Value reconstructs tree t as a dynamic value.
func (f *Forest) Value(t int) Value {
	v, _ := f.nodeValue(f.Roots[t])
	return v
}

func (f *Forest) nodeValue(i uint32) (Value, uint32) {
	kind := Kind(f.Kinds[i])
	d0 := f.Data0[i]
	next := i + 1
	switch kind {
	case KindNull:
		return Value{Kind: KindNull}, next
	case KindBool:
		return Value{Kind: kind, Bool: f.Pools.Bool.Values[d0], Null: !f.Pools.Bool.IsValid(d0)}, next
	case KindInt:
		return Value{Kind: kind, Int: f.Pools.Int.Values[d0], Null: !f.Pools.Int.IsValid(d0)}, next
	case KindFloat:
		return Value{Kind: kind, Float: f.Pools.Float.Values[d0], Null: !f.Pools.Float.IsValid(d0)}, next
	case KindString:
		return Value{Kind: kind, Str: f.Pools.Str.Values[d0], Null: !f.Pools.Str.IsValid(d0)}, next
	case KindDate:
		return Value{Kind: kind, Date: f.Pools.Date.Values[d0], Null: !f.Pools.Date.IsValid(d0)}, next
	case KindDatetime:
		return Value{Kind: kind, Int: f.Pools.Datetime.Values[d0], Null: !f.Pools.Datetime.IsValid(d0)}, next
	case KindDuration:
		return Value{Kind: kind, Int: f.Pools.Duration.Values[d0], Null: !f.Pools.Duration.IsValid(d0)}, next
	case KindBinary:
		return Value{Kind: kind, Bytes: f.Pools.Binary.Values[d0], Null: !f.Pools.Binary.IsValid(d0)}, next
	case KindInterned:
		s, _ := f.Dict.At(d0)
		return Value{Kind: kind, Str: s}, next
	case KindArray:
		v := Value{Kind: KindArray, Elems: make([]Value, 0, d0)}
		for c := uint32(0); c < d0; c++ {
			var child Value
			child, next = f.nodeValue(next)
			v.Elems = append(v.Elems, child)
		}
		return v, next
	case KindObject:
		v := Value{Kind: KindObject, Fields: make([]Field, 0, d0)}
		for c := uint32(0); c < d0; c++ {
			key, _ := f.Dict.At(f.Data1[next])
			var child Value
			child, next = f.nodeValue(next)
			v.Fields = append(v.Fields, Field{Key: key, Value: child})
		}
		return v, next
	default:
		return Value{Kind: KindNull}, next
	}
}

// Equal reports deep equality of two values. Object member order is
// significant (members are key-ordered after a round trip).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Null != o.Null {
		return false
	}
	if v.Null {
		return true
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt, KindDatetime, KindDuration:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString, KindInterned:
		return v.Str == o.Str
	case KindDate:
		return v.Date == o.Date
	case KindBinary:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindArray:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Fields) != len(o.Fields) {
			return false
		}
		for i := range v.Fields {
			if v.Fields[i].Key != o.Fields[i].Key || !v.Fields[i].Value.Equal(o.Fields[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}
