package forest

// Pools holds the eight typed value pools of a forest or batch.
//
// Every pool is nullable: a nil Valid slice means all entries are valid,
// otherwise Valid[i] reports whether entry i carries a value. The pool
// order is frozen by the wire format: bool, int64, float64, string,
// date, datetime, duration, binary.
type Pools struct {
	Bool     BoolPool
	Int      Int64Pool
	Float    Float64Pool
	Str      StringPool
	Date     Int32Pool
	Datetime Int64Pool
	Duration Int64Pool
	Binary   BytesPool
}

// BoolPool stores boolean values.
type BoolPool struct {
	Values []bool
	Valid  []bool
}

// Int64Pool stores 64-bit integers (also timestamps and durations in
// microseconds).
type Int64Pool struct {
	Values []int64
	Valid  []bool
}

// Float64Pool stores 64-bit floats.
type Float64Pool struct {
	Values []float64
	Valid  []bool
}

// StringPool stores UTF-8 strings.
type StringPool struct {
	Values []string
	Valid  []bool
}

// Int32Pool stores 32-bit integers (dates as days since epoch).
type Int32Pool struct {
	Values []int32
	Valid  []bool
}

// BytesPool stores byte strings.
type BytesPool struct {
	Values [][]byte
	Valid  []bool
}

func (p *BoolPool) Len() int    { return len(p.Values) }
func (p *Int64Pool) Len() int   { return len(p.Values) }
func (p *Float64Pool) Len() int { return len(p.Values) }
func (p *StringPool) Len() int  { return len(p.Values) }
func (p *Int32Pool) Len() int   { return len(p.Values) }
func (p *BytesPool) Len() int   { return len(p.Values) }

// IsValid reports whether entry i carries a value.
func (p *BoolPool) IsValid(i uint32) bool    { return p.Valid == nil || p.Valid[i] }
func (p *Int64Pool) IsValid(i uint32) bool   { return p.Valid == nil || p.Valid[i] }
func (p *Float64Pool) IsValid(i uint32) bool { return p.Valid == nil || p.Valid[i] }
func (p *StringPool) IsValid(i uint32) bool  { return p.Valid == nil || p.Valid[i] }
func (p *Int32Pool) IsValid(i uint32) bool   { return p.Valid == nil || p.Valid[i] }
func (p *BytesPool) IsValid(i uint32) bool   { return p.Valid == nil || p.Valid[i] }

func appendValid(valid []bool, n int, ok bool) []bool {
	if ok && valid == nil {
		return nil // still all-valid
	}
	if valid == nil {
		valid = make([]bool, n)
		for i := range valid {
			valid[i] = true
		}
	}
	return append(valid, ok)
}

// Add appends a value and returns its index. A null entry records the
// zero value with a cleared validity bit.
func (p *BoolPool) Add(v bool, null bool) uint32 {
	p.Valid = appendValid(p.Valid, len(p.Values), !null)
	p.Values = append(p.Values, v)
	return uint32(len(p.Values) - 1)
}

func (p *Int64Pool) Add(v int64, null bool) uint32 {
	p.Valid = appendValid(p.Valid, len(p.Values), !null)
	p.Values = append(p.Values, v)
	return uint32(len(p.Values) - 1)
}

func (p *Float64Pool) Add(v float64, null bool) uint32 {
	p.Valid = appendValid(p.Valid, len(p.Values), !null)
	p.Values = append(p.Values, v)
	return uint32(len(p.Values) - 1)
}

func (p *StringPool) Add(v string, null bool) uint32 {
	p.Valid = appendValid(p.Valid, len(p.Values), !null)
	p.Values = append(p.Values, v)
	return uint32(len(p.Values) - 1)
}

func (p *Int32Pool) Add(v int32, null bool) uint32 {
	p.Valid = appendValid(p.Valid, len(p.Values), !null)
	p.Values = append(p.Values, v)
	return uint32(len(p.Values) - 1)
}

func (p *BytesPool) Add(v []byte, null bool) uint32 {
	p.Valid = appendValid(p.Valid, len(p.Values), !null)
	p.Values = append(p.Values, v)
	return uint32(len(p.Values) - 1)
}
