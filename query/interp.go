package query

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/hupe1980/arbordb/forest"
)

// ErrCannotEvaluate is wrapped by interpreter errors for constructs the
// engine does not evaluate at all (wildcard and filter path segments,
// array/object construction).
var ErrCannotEvaluate = errors.New("query: cannot evaluate expression")

// Interpreter is the row-wise fallback evaluator. It shares the scalar
// kernels with the vectorized engine, so on schema-conforming data both
// produce identical results; it additionally handles constructs the
// vectorized engine rejects, such as index path segments, regular
// expression matches, untyped null literals, and paths outside the
// schema.
type Interpreter struct {
	regexps map[string]*regexp.Regexp
}

// NewInterpreter returns a fallback evaluator with an empty pattern
// cache.
func NewInterpreter() *Interpreter {
	return &Interpreter{regexps: make(map[string]*regexp.Regexp)}
}

// EvalTree evaluates e against tree t of f and returns the result as a
// dynamic value. Null and missing results both read as a null value;
// use Matches for filter semantics.
func (in *Interpreter) EvalTree(e *Expr, f *forest.Forest, t int) (forest.Value, error) {
	c, err := in.eval(e, f, t)
	if err != nil {
		return forest.Value{}, err
	}
	return c.value(), nil
}

// Matches reports whether tree t satisfies filter expression e: a valid
// true boolean result. Null, missing, and non-boolean results do not
// match.
func (in *Interpreter) Matches(e *Expr, f *forest.Forest, t int) (bool, error) {
	c, err := in.eval(e, f, t)
	if err != nil {
		return false, err
	}
	return c.pres == PresValid && c.typ == TBool && c.b, nil
}

// EvalBatch evaluates e for every tree of f and returns the results as
// a column, making fallback output interchangeable with program output.
// Aggregate roots are evaluated over their argument; fold the columns
// with Fold as with the vectorized engine.
func (in *Interpreter) EvalBatch(e *Expr, f *forest.Forest) (*Column, error) {
	if e.Op.IsAggregate() {
		e = e.Args[0]
	}
	col := newColumn(f.TreeCount())
	for t := 0; t < f.TreeCount(); t++ {
		c, err := in.eval(e, f, t)
		if err != nil {
			return nil, err
		}
		col.cells[t] = c
	}
	return col, nil
}

func (in *Interpreter) eval(e *Expr, f *forest.Forest, t int) (cell, error) {
	switch e.Op {
	case OpPath:
		return in.resolvePath(e.Path, f, t)

	case OpLiteral:
		return litCell(e.Lit), nil

	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return in.zip(e, f, t, func(l, r cell) cell { return cellCompare(e.Op, l, r) })

	case OpAnd:
		return in.zip(e, f, t, cellAnd)
	case OpOr:
		return in.zip(e, f, t, cellOr)
	case OpNot:
		return in.map1(e, f, t, cellNot)

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
		return in.zip(e, f, t, func(l, r cell) cell { return cellArith(e.Op, l, r) })

	case OpNeg, OpAbs, OpRound, OpFloor, OpCeil:
		return in.map1(e, f, t, func(c cell) cell { return cellUnaryNum(e.Op, c) })

	case OpClamp, OpBetween:
		x, err := in.eval(e.Args[0], f, t)
		if err != nil {
			return cell{}, err
		}
		lo, err := in.eval(e.Args[1], f, t)
		if err != nil {
			return cell{}, err
		}
		hi, err := in.eval(e.Args[2], f, t)
		if err != nil {
			return cell{}, err
		}
		if e.Op == OpClamp {
			return cellClamp(x, lo, hi), nil
		}
		return cellBetween(x, lo, hi), nil

	case OpIn:
		return in.map1(e, f, t, func(c cell) cell { return cellIn(c, e.List) })

	case OpLower, OpUpper, OpTrim, OpLTrim, OpRTrim, OpLength:
		return in.map1(e, f, t, func(c cell) cell { return cellString(e.Op, c) })

	case OpStartsWith, OpEndsWith, OpContains:
		return in.zip(e, f, t, func(l, r cell) cell { return cellStringMatch(e.Op, l, r) })

	case OpYear, OpMonth, OpDay, OpHour, OpMinute, OpSecond:
		return in.map1(e, f, t, func(c cell) cell { return cellTimeComponent(e.Op, c) })

	case OpIsNull, OpExists, OpIsString, OpIsNumber, OpIsBool:
		return in.map1(e, f, t, func(c cell) cell { return cellPredicate(e.Op, c) })

	case OpRegexMatch:
		return in.regexMatch(e, f, t)

	case OpSum, OpMin, OpMax, OpMean, OpCount, OpAny, OpAll:
		return cell{}, fmt.Errorf("%w: aggregate below the root", ErrCannotEvaluate)

	case OpArrayCons, OpObjectCons:
		return cell{}, fmt.Errorf("%w: value construction", ErrCannotEvaluate)
	}
	return cell{}, fmt.Errorf("%w: unknown operator %d", ErrCannotEvaluate, e.Op)
}

func (in *Interpreter) map1(e *Expr, f *forest.Forest, t int, fn func(cell) cell) (cell, error) {
	c, err := in.eval(e.Args[0], f, t)
	if err != nil {
		return cell{}, err
	}
	return fn(c), nil
}

func (in *Interpreter) zip(e *Expr, f *forest.Forest, t int, fn func(cell, cell) cell) (cell, error) {
	l, err := in.eval(e.Args[0], f, t)
	if err != nil {
		return cell{}, err
	}
	r, err := in.eval(e.Args[1], f, t)
	if err != nil {
		return cell{}, err
	}
	return fn(l, r), nil
}

// resolvePath walks field and index segments. A segment that does not
// resolve makes the whole path missing; wildcard and filter segments
// are not evaluated.
func (in *Interpreter) resolvePath(segs []PathSeg, f *forest.Forest, t int) (cell, error) {
	node := f.Roots[t]
	for _, seg := range segs {
		switch seg.Kind {
		case SegField:
			id, ok := f.Dict.Lookup(seg.Field)
			if !ok {
				return missingCell, nil
			}
			child, ok := f.Child(node, id)
			if !ok {
				return missingCell, nil
			}
			node = child
		case SegIndex:
			if forest.Kind(f.Kinds[node]) != forest.KindArray ||
				seg.Index < 0 || uint32(seg.Index) >= f.Data0[node] {
				return missingCell, nil
			}
			c := node + 1
			for i := 0; i < seg.Index; i++ {
				c = f.SubtreeEnd(c)
			}
			node = c
		default:
			return cell{}, fmt.Errorf("%w: %s path segment", ErrCannotEvaluate, segKindName(seg.Kind))
		}
	}
	return nodeCell(f, node), nil
}

func (in *Interpreter) regexMatch(e *Expr, f *forest.Forest, t int) (cell, error) {
	subj, err := in.eval(e.Args[0], f, t)
	if err != nil {
		return cell{}, err
	}
	pat, err := in.eval(e.Args[1], f, t)
	if err != nil {
		return cell{}, err
	}
	if pat.pres != PresValid || pat.typ != TString {
		return nullCell, nil
	}
	re, ok := in.regexps[pat.str]
	if !ok {
		re, err = regexp.Compile(pat.str)
		if err != nil {
			return cell{}, fmt.Errorf("query: bad pattern %q: %w", pat.str, err)
		}
		in.regexps[pat.str] = re
	}
	if subj.pres != PresValid || subj.typ != TString {
		return nullCell, nil
	}
	return boolCell(re.MatchString(subj.str)), nil
}
