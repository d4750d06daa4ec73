package query

import "github.com/hupe1980/arbordb/forest"

// EvalBatch evaluates e over one batch, using the vectorized engine
// when the expression is inside the supported subset and the row-wise
// fallback otherwise. The returned flag reports which engine ran.
func EvalBatch(e *Expr, s *Schema, f *forest.Forest) (*Column, bool, error) {
	if p, u := Compile(e, s); u == nil {
		return p.EvalBatch(f), true, nil
	}
	col, err := NewInterpreter().EvalBatch(e, f)
	return col, false, err
}
