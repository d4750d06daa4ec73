package query

import "github.com/hupe1980/arbordb/forest"

// Schema maps dotted field paths to column types. The support detector
// consults it to type-check expressions; without a schema nothing is
// vectorizable and every query falls back to the row-wise evaluator.
//
// A path observed with conflicting types is dropped and stays dropped
// across Merge calls, so expressions over it always use the fallback.
type Schema struct {
	fields  map[string]ColType
	dropped map[string]bool
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		fields:  make(map[string]ColType),
		dropped: make(map[string]bool),
	}
}

// Set declares the type of a dotted path and returns the schema for
// chaining.
func (s *Schema) Set(path string, t ColType) *Schema {
	s.fields[path] = t
	delete(s.dropped, path)
	return s
}

// Type returns the declared type of a dotted path.
func (s *Schema) Type(path string) (ColType, bool) {
	if s == nil {
		return TInvalid, false
	}
	t, ok := s.fields[path]
	return t, ok
}

// Len returns the number of declared paths.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Merge folds o into s and returns s. Paths typed differently in the
// two schemas, or dropped in either, are dropped from the result.
func (s *Schema) Merge(o *Schema) *Schema {
	if o == nil {
		return s
	}
	for path := range o.dropped {
		s.drop(path)
	}
	for path, t := range o.fields {
		s.record(path, t)
	}
	return s
}

func (s *Schema) record(path string, t ColType) {
	if s.dropped[path] || t == TInvalid {
		return
	}
	if prev, ok := s.fields[path]; ok {
		if prev != t {
			s.drop(path)
		}
		return
	}
	s.fields[path] = t
}

func (s *Schema) drop(path string) {
	delete(s.fields, path)
	s.dropped[path] = true
}

// Infer derives a schema from the scalar leaf paths of a forest. A path
// whose type differs between trees is dropped: expressions over it are
// routed to the row-wise evaluator instead. Untyped nulls neither
// establish nor contradict a type.
func Infer(f *forest.Forest) *Schema {
	s := NewSchema()
	for t := 0; t < f.TreeCount(); t++ {
		root := f.Roots[t]
		if forest.Kind(f.Kinds[root]) == forest.KindObject {
			inferObject(f, root, "", s)
		}
	}
	return s
}

func inferObject(f *forest.Forest, obj uint32, prefix string, s *Schema) {
	c := obj + 1
	for n := uint32(0); n < f.Data0[obj]; n++ {
		key, _ := f.Dict.At(f.Data1[c])
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		kind := forest.Kind(f.Kinds[c])
		switch {
		case kind == forest.KindObject:
			inferObject(f, c, path, s)
		case kind == forest.KindNull || kind == forest.KindArray:
			// Untyped; arrays are not addressable by field paths.
		default:
			s.record(path, kindType(kind))
		}
		c = f.SubtreeEnd(c)
	}
}

func kindType(k forest.Kind) ColType {
	switch k {
	case forest.KindBool:
		return TBool
	case forest.KindInt:
		return TInt
	case forest.KindFloat:
		return TFloat
	case forest.KindString, forest.KindInterned:
		return TString
	case forest.KindDate:
		return TDate
	case forest.KindDatetime:
		return TDatetime
	case forest.KindDuration:
		return TDuration
	case forest.KindBinary:
		return TBinary
	default:
		return TInvalid
	}
}

// dottedPath renders a field-only path for schema lookup. Non-field
// segments are rejected by the detector before this is called.
func dottedPath(segs []PathSeg) string {
	var out string
	for i, seg := range segs {
		if i > 0 {
			out += "."
		}
		out += seg.Field
	}
	return out
}
