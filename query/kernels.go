package query

import (
	"bytes"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/arbordb/forest"
)

// Scalar kernels. The vectorized evaluator loops these over columns and
// the row-wise evaluator applies them per tree, so the two paths share
// one set of semantics:
//
//   - missing operands collapse to null on the way into any operator
//   - null propagates through comparisons, arithmetic, strings and
//     temporal extraction
//   - boolean and/or use three-valued logic (false AND null = false,
//     true OR null = true)
//   - type-mismatched operands yield null, never an error
//
// All numeric work is done in float64; ints, dates and the microsecond
// temporal types ride along in the same slot.

func cellCompare(op Op, l, r cell) cell {
	if l.pres != PresValid || r.pres != PresValid {
		return nullCell
	}
	if l.typ.family() != r.typ.family() {
		return nullCell
	}
	var cmp int
	switch l.typ.family() {
	case famBool:
		cmp = boolCmp(l.b, r.b)
	case famNum, famDate, famDatetime, famDuration:
		switch {
		case l.num < r.num:
			cmp = -1
		case l.num > r.num:
			cmp = 1
		}
	case famString:
		cmp = strings.Compare(l.str, r.str)
	case famBinary:
		cmp = bytes.Compare(l.raw, r.raw)
	default:
		return nullCell
	}
	switch op {
	case OpEq:
		return boolCell(cmp == 0)
	case OpNe:
		return boolCell(cmp != 0)
	case OpLt:
		return boolCell(cmp < 0)
	case OpLe:
		return boolCell(cmp <= 0)
	case OpGt:
		return boolCell(cmp > 0)
	case OpGe:
		return boolCell(cmp >= 0)
	}
	return nullCell
}

func boolCmp(l, r bool) int {
	switch {
	case l == r:
		return 0
	case r:
		return -1
	default:
		return 1
	}
}

func cellAnd(l, r cell) cell {
	lf, lv := boolOperand(l)
	rf, rv := boolOperand(r)
	switch {
	case lv && !lf, rv && !rf:
		return boolCell(false)
	case lv && rv:
		return boolCell(true)
	default:
		return nullCell
	}
}

func cellOr(l, r cell) cell {
	lf, lv := boolOperand(l)
	rf, rv := boolOperand(r)
	switch {
	case lv && lf, rv && rf:
		return boolCell(true)
	case lv && rv:
		return boolCell(false)
	default:
		return nullCell
	}
}

func cellNot(c cell) cell {
	if v, ok := boolOperand(c); ok {
		return boolCell(!v)
	}
	return nullCell
}

func boolOperand(c cell) (val, ok bool) {
	if c.pres != PresValid || c.typ != TBool {
		return false, false
	}
	return c.b, true
}

func cellArith(op Op, l, r cell) cell {
	lv, lok := numOperand(l)
	rv, rok := numOperand(r)
	if !lok || !rok {
		return nullCell
	}
	t := TFloat
	if l.typ == TInt && r.typ == TInt && op != OpDiv && op != OpPow {
		t = TInt
	}
	var out float64
	switch op {
	case OpAdd:
		out = lv + rv
	case OpSub:
		out = lv - rv
	case OpMul:
		out = lv * rv
	case OpDiv:
		if rv == 0 {
			return nullCell
		}
		out = lv / rv
	case OpMod:
		if rv == 0 {
			return nullCell
		}
		out = math.Mod(lv, rv)
	case OpPow:
		out = math.Pow(lv, rv)
	default:
		return nullCell
	}
	return numCell(t, out)
}

func cellUnaryNum(op Op, c cell) cell {
	v, ok := numOperand(c)
	if !ok {
		return nullCell
	}
	switch op {
	case OpNeg:
		return numCell(c.typ, -v)
	case OpAbs:
		return numCell(c.typ, math.Abs(v))
	case OpRound:
		return numCell(TInt, math.Round(v))
	case OpFloor:
		return numCell(TInt, math.Floor(v))
	case OpCeil:
		return numCell(TInt, math.Ceil(v))
	}
	return nullCell
}

func numOperand(c cell) (float64, bool) {
	if c.pres != PresValid || c.typ.family() != famNum {
		return 0, false
	}
	return c.num, true
}

func cellClamp(x, lo, hi cell) cell {
	xv, xok := numOperand(x)
	lv, lok := numOperand(lo)
	hv, hok := numOperand(hi)
	if !xok || !lok || !hok {
		return nullCell
	}
	out := math.Min(math.Max(xv, lv), hv)
	t := TFloat
	if x.typ == TInt && lo.typ == TInt && hi.typ == TInt {
		t = TInt
	}
	return numCell(t, out)
}

func cellBetween(x, lo, hi cell) cell {
	return cellAnd(cellCompare(OpGe, x, lo), cellCompare(OpLe, x, hi))
}

func cellIn(x cell, list []forest.Value) cell {
	if x.pres != PresValid {
		return nullCell
	}
	sawNull := false
	for _, lit := range list {
		c := cellCompare(OpEq, x, litCell(lit))
		switch {
		case c.pres == PresValid && c.b:
			return boolCell(true)
		case c.pres != PresValid:
			sawNull = true
		}
	}
	if sawNull {
		return nullCell
	}
	return boolCell(false)
}

func cellString(op Op, c cell) cell {
	if c.pres != PresValid || c.typ != TString {
		return nullCell
	}
	switch op {
	case OpLower:
		return strCell(strings.ToLower(c.str))
	case OpUpper:
		return strCell(strings.ToUpper(c.str))
	case OpTrim:
		return strCell(strings.TrimSpace(c.str))
	case OpLTrim:
		return strCell(strings.TrimLeft(c.str, " \t\n\r"))
	case OpRTrim:
		return strCell(strings.TrimRight(c.str, " \t\n\r"))
	case OpLength:
		return numCell(TInt, float64(utf8.RuneCountInString(c.str)))
	}
	return nullCell
}

func cellStringMatch(op Op, c, pattern cell) cell {
	if c.pres != PresValid || c.typ != TString ||
		pattern.pres != PresValid || pattern.typ != TString {
		return nullCell
	}
	switch op {
	case OpStartsWith:
		return boolCell(strings.HasPrefix(c.str, pattern.str))
	case OpEndsWith:
		return boolCell(strings.HasSuffix(c.str, pattern.str))
	case OpContains:
		return boolCell(strings.Contains(c.str, pattern.str))
	}
	return nullCell
}

const secondsPerDay = 86400

func cellTimeComponent(op Op, c cell) cell {
	if c.pres != PresValid {
		return nullCell
	}
	var ts time.Time
	switch c.typ {
	case TDate:
		if op == OpHour || op == OpMinute || op == OpSecond {
			return nullCell // dates have no time of day
		}
		ts = time.Unix(int64(c.num)*secondsPerDay, 0).UTC()
	case TDatetime:
		ts = time.UnixMicro(int64(c.num)).UTC()
	default:
		return nullCell
	}
	switch op {
	case OpYear:
		return numCell(TInt, float64(ts.Year()))
	case OpMonth:
		return numCell(TInt, float64(ts.Month()))
	case OpDay:
		return numCell(TInt, float64(ts.Day()))
	case OpHour:
		return numCell(TInt, float64(ts.Hour()))
	case OpMinute:
		return numCell(TInt, float64(ts.Minute()))
	case OpSecond:
		return numCell(TInt, float64(ts.Second()))
	}
	return nullCell
}

func cellPredicate(op Op, c cell) cell {
	switch op {
	case OpIsNull:
		return boolCell(c.pres == PresNull)
	case OpExists:
		return boolCell(c.pres != PresMissing)
	case OpIsString:
		return boolCell(c.pres == PresValid && c.typ == TString)
	case OpIsNumber:
		return boolCell(c.pres == PresValid && c.typ.family() == famNum)
	case OpIsBool:
		return boolCell(c.pres == PresValid && c.typ == TBool)
	}
	return nullCell
}

// Fold reduces one or more result columns (one per batch) to a scalar
// aggregate. Null and missing slots are skipped. Empty-input semantics:
// sum is 0, count is 0, any is false, all is true, and min/max/mean are
// null.
func Fold(op Op, cols ...*Column) forest.Value {
	switch op {
	case OpSum:
		sum := 0.0
		for _, col := range cols {
			for i := range col.cells {
				if v, ok := numOperand(col.cells[i]); ok {
					sum += v
				}
			}
		}
		return forest.Float(sum)
	case OpCount:
		n := int64(0)
		for _, col := range cols {
			for i := range col.cells {
				if col.cells[i].pres == PresValid {
					n++
				}
			}
		}
		return forest.Int(n)
	case OpAny, OpAll:
		for _, col := range cols {
			for i := range col.cells {
				if v, ok := boolOperand(col.cells[i]); ok {
					if op == OpAny && v {
						return forest.Bool(true)
					}
					if op == OpAll && !v {
						return forest.Bool(false)
					}
				}
			}
		}
		return forest.Bool(op == OpAll)
	case OpMean:
		sum, n := 0.0, 0
		for _, col := range cols {
			for i := range col.cells {
				if v, ok := numOperand(col.cells[i]); ok {
					sum += v
					n++
				}
			}
		}
		if n == 0 {
			return forest.Null()
		}
		return forest.Float(sum / float64(n))
	case OpMin, OpMax:
		best := nullCell
		for _, col := range cols {
			for i := range col.cells {
				c := col.cells[i]
				if c.pres != PresValid {
					continue
				}
				if best.pres != PresValid {
					best = c
					continue
				}
				cmpOp := OpLt
				if op == OpMax {
					cmpOp = OpGt
				}
				if r := cellCompare(cmpOp, c, best); r.pres == PresValid && r.b {
					best = c
				}
			}
		}
		return best.value()
	}
	return forest.Null()
}
