// Package query compiles a supported subset of the expression language
// into columnar evaluation over decoded batches, and provides the
// row-wise fallback evaluator used for everything outside the subset.
//
// The expression tree is a tagged variant: unsupported constructs
// (wildcards, index and filter path segments, regular expressions,
// array/object construction) are ordinary variants, so the support
// detector can return a structured reason instead of failing.
package query

import "github.com/hupe1980/arbordb/forest"

// Op enumerates expression node kinds.
type Op int

const (
	OpInvalid Op = iota

	// Leaves.
	OpPath    // field path projection
	OpLiteral // scalar literal

	// Comparisons.
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Boolean logic.
	OpAnd
	OpOr
	OpNot

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpAbs
	OpMod
	OpPow
	OpRound
	OpFloor
	OpCeil

	// Ranges and membership.
	OpClamp   // clamp(x, lo, hi)
	OpBetween // lo <= x <= hi
	OpIn      // x in literal list

	// String transforms and predicates.
	OpLower
	OpUpper
	OpTrim
	OpLTrim
	OpRTrim
	OpLength
	OpStartsWith
	OpEndsWith
	OpContains

	// Date/time component extraction.
	OpYear
	OpMonth
	OpDay
	OpHour
	OpMinute
	OpSecond

	// Null/existence and type predicates.
	OpIsNull
	OpExists
	OpIsString
	OpIsNumber
	OpIsBool

	// Aggregates.
	OpSum
	OpMin
	OpMax
	OpMean
	OpCount
	OpAny
	OpAll

	// Recognized but never vectorized; the caller must use the
	// row-wise interpreter (or, for these, typically cannot evaluate
	// at all without the full language runtime).
	OpRegexMatch
	OpArrayCons
	OpObjectCons
)

// SegKind enumerates path segment kinds. Only field segments are
// vectorizable.
type SegKind int

const (
	SegField SegKind = iota
	SegIndex
	SegWildcard
	SegFilter
)

// PathSeg is one segment of a path expression.
type PathSeg struct {
	Kind   SegKind
	Field  string
	Index  int
	Filter *Expr
}

// Expr is one node of an expression tree.
type Expr struct {
	Op   Op
	Args []*Expr

	Path []PathSeg      // OpPath
	Lit  forest.Value   // OpLiteral
	List []forest.Value // OpIn membership list
}

// Constructors, in rough precedence order of everyday use.

// Path builds a field-only path expression.
func Path(fields ...string) *Expr {
	segs := make([]PathSeg, len(fields))
	for i, f := range fields {
		segs[i] = PathSeg{Kind: SegField, Field: f}
	}
	return &Expr{Op: OpPath, Path: segs}
}

// Lit builds a literal expression.
func Lit(v forest.Value) *Expr { return &Expr{Op: OpLiteral, Lit: v} }

func Eq(l, r *Expr) *Expr { return &Expr{Op: OpEq, Args: []*Expr{l, r}} }
func Ne(l, r *Expr) *Expr { return &Expr{Op: OpNe, Args: []*Expr{l, r}} }
func Lt(l, r *Expr) *Expr { return &Expr{Op: OpLt, Args: []*Expr{l, r}} }
func Le(l, r *Expr) *Expr { return &Expr{Op: OpLe, Args: []*Expr{l, r}} }
func Gt(l, r *Expr) *Expr { return &Expr{Op: OpGt, Args: []*Expr{l, r}} }
func Ge(l, r *Expr) *Expr { return &Expr{Op: OpGe, Args: []*Expr{l, r}} }

func And(l, r *Expr) *Expr { return &Expr{Op: OpAnd, Args: []*Expr{l, r}} }
func Or(l, r *Expr) *Expr  { return &Expr{Op: OpOr, Args: []*Expr{l, r}} }
func Not(e *Expr) *Expr    { return &Expr{Op: OpNot, Args: []*Expr{e}} }

func Add(l, r *Expr) *Expr { return &Expr{Op: OpAdd, Args: []*Expr{l, r}} }
func Sub(l, r *Expr) *Expr { return &Expr{Op: OpSub, Args: []*Expr{l, r}} }
func Mul(l, r *Expr) *Expr { return &Expr{Op: OpMul, Args: []*Expr{l, r}} }
func Div(l, r *Expr) *Expr { return &Expr{Op: OpDiv, Args: []*Expr{l, r}} }
func Neg(e *Expr) *Expr    { return &Expr{Op: OpNeg, Args: []*Expr{e}} }
func Abs(e *Expr) *Expr    { return &Expr{Op: OpAbs, Args: []*Expr{e}} }
func Mod(l, r *Expr) *Expr { return &Expr{Op: OpMod, Args: []*Expr{l, r}} }
func Pow(l, r *Expr) *Expr { return &Expr{Op: OpPow, Args: []*Expr{l, r}} }
func Round(e *Expr) *Expr  { return &Expr{Op: OpRound, Args: []*Expr{e}} }
func Floor(e *Expr) *Expr  { return &Expr{Op: OpFloor, Args: []*Expr{e}} }
func Ceil(e *Expr) *Expr   { return &Expr{Op: OpCeil, Args: []*Expr{e}} }

func Clamp(x, lo, hi *Expr) *Expr   { return &Expr{Op: OpClamp, Args: []*Expr{x, lo, hi}} }
func Between(x, lo, hi *Expr) *Expr { return &Expr{Op: OpBetween, Args: []*Expr{x, lo, hi}} }

// In builds a membership test against a literal list.
func In(x *Expr, list ...forest.Value) *Expr {
	return &Expr{Op: OpIn, Args: []*Expr{x}, List: list}
}

func Lower(e *Expr) *Expr  { return &Expr{Op: OpLower, Args: []*Expr{e}} }
func Upper(e *Expr) *Expr  { return &Expr{Op: OpUpper, Args: []*Expr{e}} }
func Trim(e *Expr) *Expr   { return &Expr{Op: OpTrim, Args: []*Expr{e}} }
func LTrim(e *Expr) *Expr  { return &Expr{Op: OpLTrim, Args: []*Expr{e}} }
func RTrim(e *Expr) *Expr  { return &Expr{Op: OpRTrim, Args: []*Expr{e}} }
func Length(e *Expr) *Expr { return &Expr{Op: OpLength, Args: []*Expr{e}} }

func StartsWith(e, pattern *Expr) *Expr {
	return &Expr{Op: OpStartsWith, Args: []*Expr{e, pattern}}
}
func EndsWith(e, pattern *Expr) *Expr {
	return &Expr{Op: OpEndsWith, Args: []*Expr{e, pattern}}
}
func Contains(e, pattern *Expr) *Expr {
	return &Expr{Op: OpContains, Args: []*Expr{e, pattern}}
}

func Year(e *Expr) *Expr   { return &Expr{Op: OpYear, Args: []*Expr{e}} }
func Month(e *Expr) *Expr  { return &Expr{Op: OpMonth, Args: []*Expr{e}} }
func Day(e *Expr) *Expr    { return &Expr{Op: OpDay, Args: []*Expr{e}} }
func Hour(e *Expr) *Expr   { return &Expr{Op: OpHour, Args: []*Expr{e}} }
func Minute(e *Expr) *Expr { return &Expr{Op: OpMinute, Args: []*Expr{e}} }
func Second(e *Expr) *Expr { return &Expr{Op: OpSecond, Args: []*Expr{e}} }

func IsNull(e *Expr) *Expr   { return &Expr{Op: OpIsNull, Args: []*Expr{e}} }
func Exists(e *Expr) *Expr   { return &Expr{Op: OpExists, Args: []*Expr{e}} }
func IsString(e *Expr) *Expr { return &Expr{Op: OpIsString, Args: []*Expr{e}} }
func IsNumber(e *Expr) *Expr { return &Expr{Op: OpIsNumber, Args: []*Expr{e}} }
func IsBool(e *Expr) *Expr   { return &Expr{Op: OpIsBool, Args: []*Expr{e}} }

func Sum(e *Expr) *Expr   { return &Expr{Op: OpSum, Args: []*Expr{e}} }
func Min(e *Expr) *Expr   { return &Expr{Op: OpMin, Args: []*Expr{e}} }
func Max(e *Expr) *Expr   { return &Expr{Op: OpMax, Args: []*Expr{e}} }
func Mean(e *Expr) *Expr  { return &Expr{Op: OpMean, Args: []*Expr{e}} }
func Count(e *Expr) *Expr { return &Expr{Op: OpCount, Args: []*Expr{e}} }
func Any(e *Expr) *Expr   { return &Expr{Op: OpAny, Args: []*Expr{e}} }
func All(e *Expr) *Expr   { return &Expr{Op: OpAll, Args: []*Expr{e}} }

// RegexMatch is recognized by the detector but never vectorized.
func RegexMatch(e, pattern *Expr) *Expr {
	return &Expr{Op: OpRegexMatch, Args: []*Expr{e, pattern}}
}

// IsAggregate reports whether op folds a column to a scalar.
func (o Op) IsAggregate() bool {
	switch o {
	case OpSum, OpMin, OpMax, OpMean, OpCount, OpAny, OpAll:
		return true
	}
	return false
}
