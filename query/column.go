package query

import "github.com/hupe1980/arbordb/forest"

// ColType is the static type of a projected column or expression.
type ColType int

const (
	TInvalid ColType = iota
	TBool
	TInt
	TFloat
	TString
	TDate
	TDatetime
	TDuration
	TBinary
)

func (t ColType) String() string {
	switch t {
	case TBool:
		return "bool"
	case TInt:
		return "int"
	case TFloat:
		return "float"
	case TString:
		return "string"
	case TDate:
		return "date"
	case TDatetime:
		return "datetime"
	case TDuration:
		return "duration"
	case TBinary:
		return "binary"
	default:
		return "invalid"
	}
}

// family groups types that compare with each other. Ints and floats
// share a family; everything else only compares with itself.
type family int

const (
	famInvalid family = iota
	famBool
	famNum
	famString
	famDate
	famDatetime
	famDuration
	famBinary
)

func (t ColType) family() family {
	switch t {
	case TBool:
		return famBool
	case TInt, TFloat:
		return famNum
	case TString:
		return famString
	case TDate:
		return famDate
	case TDatetime:
		return famDatetime
	case TDuration:
		return famDuration
	case TBinary:
		return famBinary
	default:
		return famInvalid
	}
}

// Presence is the tri-state of one column slot. A path that does not
// resolve in a tree is missing; a resolved null value is null. Every
// operator collapses missing operands to null, so only exists() and
// is_null() observe the distinction.
type Presence uint8

const (
	PresMissing Presence = iota
	PresNull
	PresValid
)

// cell is one dynamically typed slot. Numeric, date, datetime and
// duration payloads all live in num (days or microseconds for the
// temporal types).
type cell struct {
	pres Presence
	typ  ColType
	b    bool
	num  float64
	str  string
	raw  []byte
}

var (
	missingCell = cell{pres: PresMissing}
	nullCell    = cell{pres: PresNull}
)

func boolCell(v bool) cell      { return cell{pres: PresValid, typ: TBool, b: v} }
func numCell(t ColType, v float64) cell {
	return cell{pres: PresValid, typ: t, num: v}
}
func strCell(v string) cell { return cell{pres: PresValid, typ: TString, str: v} }
func binCell(v []byte) cell { return cell{pres: PresValid, typ: TBinary, raw: v} }

// litCell converts a literal value. Container kinds are rejected by the
// detector before evaluation; they map to a null here for safety.
func litCell(v forest.Value) cell {
	if v.Null || v.Kind == forest.KindNull {
		return nullCell
	}
	switch v.Kind {
	case forest.KindBool:
		return boolCell(v.Bool)
	case forest.KindInt:
		return numCell(TInt, float64(v.Int))
	case forest.KindFloat:
		return numCell(TFloat, v.Float)
	case forest.KindString, forest.KindInterned:
		return strCell(v.Str)
	case forest.KindDate:
		return numCell(TDate, float64(v.Date))
	case forest.KindDatetime:
		return numCell(TDatetime, float64(v.Int))
	case forest.KindDuration:
		return numCell(TDuration, float64(v.Int))
	case forest.KindBinary:
		return binCell(v.Bytes)
	default:
		return nullCell
	}
}

// Value converts a cell back to a dynamic value, for aggregate results.
func (c cell) value() forest.Value {
	if c.pres != PresValid {
		return forest.Null()
	}
	switch c.typ {
	case TBool:
		return forest.Bool(c.b)
	case TInt:
		return forest.Int(int64(c.num))
	case TFloat:
		return forest.Float(c.num)
	case TString:
		return forest.String(c.str)
	case TDate:
		return forest.Date(int32(c.num))
	case TDatetime:
		return forest.Datetime(int64(c.num))
	case TDuration:
		return forest.Duration(int64(c.num))
	case TBinary:
		return forest.Binary(c.raw)
	default:
		return forest.Null()
	}
}

// Column is the per-batch evaluation result, one slot per tree.
type Column struct {
	cells []cell
}

func newColumn(n int) *Column { return &Column{cells: make([]cell, n)} }

// Len returns the number of slots.
func (c *Column) Len() int { return len(c.cells) }

// Presence returns the tri-state of slot i.
func (c *Column) Presence(i int) Presence { return c.cells[i].pres }

// Value returns slot i as a dynamic value (null when not valid).
func (c *Column) Value(i int) forest.Value { return c.cells[i].value() }

// Truth reports whether slot i is a valid true boolean. This is the
// match test: null, missing, and non-boolean slots do not match.
func (c *Column) Truth(i int) bool {
	cl := c.cells[i]
	return cl.pres == PresValid && cl.typ == TBool && cl.b
}
