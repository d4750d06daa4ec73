package query

import "github.com/hupe1980/arbordb/forest"

// Program is a vectorized query plan: an analyzed expression bound to a
// schema. A program evaluates batch by batch, one kernel pass per
// operator, over columns projected straight out of the decoded pools.
type Program struct {
	expr   *Expr
	inner  *Expr // aggregate argument, or expr itself
	agg    Op
	schema *Schema
}

// Compile analyzes e against s and returns a vectorized program, or the
// reason vectorization is impossible.
func Compile(e *Expr, s *Schema) (*Program, *Unsupported) {
	if u := Analyze(e, s); u != nil {
		return nil, u
	}
	p := &Program{expr: e, inner: e, schema: s}
	if e.Op.IsAggregate() {
		p.agg = e.Op
		p.inner = e.Args[0]
	}
	return p, nil
}

// Aggregate returns the root aggregate operator, or false for a
// per-tree program.
func (p *Program) Aggregate() (Op, bool) { return p.agg, p.agg != OpInvalid }

// EvalBatch evaluates the program over one batch and returns a column
// with one slot per tree. For aggregate programs this is the column of
// the aggregate's argument; fold the per-batch columns with Fold.
func (p *Program) EvalBatch(f *forest.Forest) *Column {
	return evalVec(p.inner, f)
}

func evalVec(e *Expr, f *forest.Forest) *Column {
	n := f.TreeCount()
	switch e.Op {
	case OpPath:
		return project(f, e.Path)

	case OpLiteral:
		col := newColumn(n)
		c := litCell(e.Lit)
		for i := range col.cells {
			col.cells[i] = c
		}
		return col

	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return zipVec(e, f, func(l, r cell) cell { return cellCompare(e.Op, l, r) })

	case OpAnd:
		return zipVec(e, f, cellAnd)
	case OpOr:
		return zipVec(e, f, cellOr)
	case OpNot:
		return mapVec(e, f, cellNot)

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
		return zipVec(e, f, func(l, r cell) cell { return cellArith(e.Op, l, r) })

	case OpNeg, OpAbs, OpRound, OpFloor, OpCeil:
		return mapVec(e, f, func(c cell) cell { return cellUnaryNum(e.Op, c) })

	case OpClamp, OpBetween:
		x := evalVec(e.Args[0], f)
		lo := evalVec(e.Args[1], f)
		hi := evalVec(e.Args[2], f)
		out := newColumn(n)
		for i := range out.cells {
			if e.Op == OpClamp {
				out.cells[i] = cellClamp(x.cells[i], lo.cells[i], hi.cells[i])
			} else {
				out.cells[i] = cellBetween(x.cells[i], lo.cells[i], hi.cells[i])
			}
		}
		return out

	case OpIn:
		return mapVec(e, f, func(c cell) cell { return cellIn(c, e.List) })

	case OpLower, OpUpper, OpTrim, OpLTrim, OpRTrim, OpLength:
		return mapVec(e, f, func(c cell) cell { return cellString(e.Op, c) })

	case OpStartsWith, OpEndsWith, OpContains:
		return zipVec(e, f, func(l, r cell) cell { return cellStringMatch(e.Op, l, r) })

	case OpYear, OpMonth, OpDay, OpHour, OpMinute, OpSecond:
		return mapVec(e, f, func(c cell) cell { return cellTimeComponent(e.Op, c) })

	case OpIsNull, OpExists, OpIsString, OpIsNumber, OpIsBool:
		return mapVec(e, f, func(c cell) cell { return cellPredicate(e.Op, c) })
	}

	// Analyze rejects everything else before a program is built.
	out := newColumn(n)
	for i := range out.cells {
		out.cells[i] = nullCell
	}
	return out
}

func mapVec(e *Expr, f *forest.Forest, fn func(cell) cell) *Column {
	in := evalVec(e.Args[0], f)
	out := newColumn(len(in.cells))
	for i := range in.cells {
		out.cells[i] = fn(in.cells[i])
	}
	return out
}

func zipVec(e *Expr, f *forest.Forest, fn func(cell, cell) cell) *Column {
	l := evalVec(e.Args[0], f)
	r := evalVec(e.Args[1], f)
	out := newColumn(len(l.cells))
	for i := range out.cells {
		out.cells[i] = fn(l.cells[i], r.cells[i])
	}
	return out
}
