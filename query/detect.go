package query

import "fmt"

// Unsupported explains why an expression cannot be vectorized. It is
// returned by Analyze, carries the offending node, and is surfaced on
// query results so callers can see which engine ran.
type Unsupported struct {
	Reason string
	Node   *Expr
}

func (u *Unsupported) Error() string {
	return "query: not vectorizable: " + u.Reason
}

func unsupportedf(node *Expr, format string, args ...any) *Unsupported {
	return &Unsupported{Reason: fmt.Sprintf(format, args...), Node: node}
}

// Analyze type-checks e against the schema and reports whether the
// vectorized engine can run it. A nil result means vectorizable; a
// non-nil result names the first unsupported construct. Aggregates are
// only allowed at the root.
func Analyze(e *Expr, s *Schema) *Unsupported {
	root := e
	if e.Op.IsAggregate() {
		root = e.Args[0]
	}
	_, u := typeOf(root, s)
	return u
}

// typeOf computes the static result type of a supported expression, or
// the reason it is unsupported.
func typeOf(e *Expr, s *Schema) (ColType, *Unsupported) {
	if e == nil {
		return TInvalid, unsupportedf(nil, "nil expression")
	}
	switch e.Op {
	case OpPath:
		if len(e.Path) == 0 {
			return TInvalid, unsupportedf(e, "empty path")
		}
		for _, seg := range e.Path {
			if seg.Kind != SegField {
				return TInvalid, unsupportedf(e, "non-field path segment (%s)", segKindName(seg.Kind))
			}
		}
		if s.Len() == 0 {
			return TInvalid, unsupportedf(e, "no schema")
		}
		p := dottedPath(e.Path)
		t, ok := s.Type(p)
		if !ok {
			return TInvalid, unsupportedf(e, "path %q not in schema", p)
		}
		return t, nil

	case OpLiteral:
		t := kindType(e.Lit.Kind)
		if e.Lit.Null || t == TInvalid {
			return TInvalid, unsupportedf(e, "non-scalar or null literal")
		}
		return t, nil

	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		lt, u := typeOf(e.Args[0], s)
		if u != nil {
			return TInvalid, u
		}
		rt, u := typeOf(e.Args[1], s)
		if u != nil {
			return TInvalid, u
		}
		if lt.family() != rt.family() {
			return TInvalid, unsupportedf(e, "comparing %s with %s", lt, rt)
		}
		return TBool, nil

	case OpAnd, OpOr:
		for _, a := range e.Args {
			t, u := typeOf(a, s)
			if u != nil {
				return TInvalid, u
			}
			if t != TBool {
				return TInvalid, unsupportedf(e, "boolean operator over %s", t)
			}
		}
		return TBool, nil

	case OpNot:
		t, u := typeOf(e.Args[0], s)
		if u != nil {
			return TInvalid, u
		}
		if t != TBool {
			return TInvalid, unsupportedf(e, "not over %s", t)
		}
		return TBool, nil

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
		var ints = true
		for _, a := range e.Args {
			t, u := typeOf(a, s)
			if u != nil {
				return TInvalid, u
			}
			if t.family() != famNum {
				return TInvalid, unsupportedf(e, "arithmetic over %s", t)
			}
			ints = ints && t == TInt
		}
		if ints && e.Op != OpDiv && e.Op != OpPow {
			return TInt, nil
		}
		return TFloat, nil

	case OpNeg, OpAbs:
		t, u := typeOf(e.Args[0], s)
		if u != nil {
			return TInvalid, u
		}
		if t.family() != famNum {
			return TInvalid, unsupportedf(e, "arithmetic over %s", t)
		}
		return t, nil

	case OpRound, OpFloor, OpCeil:
		t, u := typeOf(e.Args[0], s)
		if u != nil {
			return TInvalid, u
		}
		if t.family() != famNum {
			return TInvalid, unsupportedf(e, "arithmetic over %s", t)
		}
		return TInt, nil

	case OpClamp, OpBetween:
		xt, u := typeOf(e.Args[0], s)
		if u != nil {
			return TInvalid, u
		}
		for _, a := range e.Args[1:] {
			t, u := typeOf(a, s)
			if u != nil {
				return TInvalid, u
			}
			if t.family() != xt.family() {
				return TInvalid, unsupportedf(e, "range bound %s does not match %s", t, xt)
			}
		}
		if e.Op == OpBetween {
			return TBool, nil
		}
		if xt.family() != famNum {
			return TInvalid, unsupportedf(e, "clamp over %s", xt)
		}
		return xt, nil

	case OpIn:
		xt, u := typeOf(e.Args[0], s)
		if u != nil {
			return TInvalid, u
		}
		for _, lit := range e.List {
			lt := kindType(lit.Kind)
			if lit.Null || lt == TInvalid {
				return TInvalid, unsupportedf(e, "non-scalar or null list element")
			}
			if lt.family() != xt.family() {
				return TInvalid, unsupportedf(e, "list element %s does not match %s", lt, xt)
			}
		}
		return TBool, nil

	case OpLower, OpUpper, OpTrim, OpLTrim, OpRTrim:
		return requireType(e, s, TString, TString)

	case OpLength:
		if _, u := requireType(e, s, TString, TString); u != nil {
			return TInvalid, u
		}
		return TInt, nil

	case OpStartsWith, OpEndsWith, OpContains:
		if _, u := requireType(e, s, TString, TString); u != nil {
			return TInvalid, u
		}
		pat := e.Args[1]
		if pat.Op != OpLiteral {
			return TInvalid, unsupportedf(e, "non-literal match pattern")
		}
		pt, u := typeOf(pat, s)
		if u != nil {
			return TInvalid, u
		}
		if pt != TString {
			return TInvalid, unsupportedf(e, "match pattern is %s, want string", pt)
		}
		return TBool, nil

	case OpYear, OpMonth, OpDay:
		t, u := typeOf(e.Args[0], s)
		if u != nil {
			return TInvalid, u
		}
		if t != TDate && t != TDatetime {
			return TInvalid, unsupportedf(e, "date component over %s", t)
		}
		return TInt, nil

	case OpHour, OpMinute, OpSecond:
		t, u := typeOf(e.Args[0], s)
		if u != nil {
			return TInvalid, u
		}
		if t != TDatetime {
			return TInvalid, unsupportedf(e, "time component over %s", t)
		}
		return TInt, nil

	case OpIsNull, OpExists:
		// Presence tests only make sense over paths; anything computed
		// is always present.
		if e.Args[0].Op != OpPath {
			return TInvalid, unsupportedf(e, "presence test over non-path expression")
		}
		// The path itself may be absent from the schema: exists() over
		// an unknown path is still answerable (always false) but we
		// route it to the fallback rather than special-case it.
		if _, u := typeOf(e.Args[0], s); u != nil {
			return TInvalid, u
		}
		return TBool, nil

	case OpIsString, OpIsNumber, OpIsBool:
		if _, u := typeOf(e.Args[0], s); u != nil {
			return TInvalid, u
		}
		return TBool, nil

	case OpSum, OpMin, OpMax, OpMean, OpCount, OpAny, OpAll:
		return TInvalid, unsupportedf(e, "nested aggregate")

	case OpRegexMatch:
		return TInvalid, unsupportedf(e, "regular expression match")
	case OpArrayCons:
		return TInvalid, unsupportedf(e, "array construction")
	case OpObjectCons:
		return TInvalid, unsupportedf(e, "object construction")
	}
	return TInvalid, unsupportedf(e, "unknown operator %d", e.Op)
}

func requireType(e *Expr, s *Schema, want, result ColType) (ColType, *Unsupported) {
	t, u := typeOf(e.Args[0], s)
	if u != nil {
		return TInvalid, u
	}
	if t != want {
		return TInvalid, unsupportedf(e, "operand is %s, want %s", t, want)
	}
	return result, nil
}

func segKindName(k SegKind) string {
	switch k {
	case SegField:
		return "field"
	case SegIndex:
		return "index"
	case SegWildcard:
		return "wildcard"
	case SegFilter:
		return "filter"
	default:
		return "unknown"
	}
}
