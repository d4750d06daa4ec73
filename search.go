package arbordb

import (
	"context"
	"time"

	"github.com/hupe1980/arbordb/forest"
	"github.com/hupe1980/arbordb/query"
)

// QueryResult is the outcome of evaluating one expression over a
// dataset.
type QueryResult struct {
	// Matches holds the global tree numbers of matching trees for
	// filter expressions. Trees where the expression is null, missing,
	// or non-boolean do not match.
	Matches []uint64
	// Value is the folded result for aggregate expressions.
	Value forest.Value
	// IsAggregate reports which of Matches and Value is meaningful.
	IsAggregate bool
	// Vectorized reports whether the columnar engine ran. Both engines
	// produce identical results; the flag exists for observability.
	Vectorized bool
	// Fallback names the construct that forced the row-wise engine,
	// when Vectorized is false.
	Fallback *query.Unsupported
}

type queryOptions struct {
	schema *query.Schema
}

// QueryOption configures Query.
type QueryOption func(*queryOptions)

// WithSchema supplies an explicit schema instead of inferring one from
// the stored trees. Data is expected to conform to it; fields that do
// not are treated as null by the vectorized engine.
func WithSchema(s *query.Schema) QueryOption {
	return func(o *queryOptions) {
		o.schema = s
	}
}

// Query evaluates expr over dataset name. The vectorized engine runs
// when the expression and schema allow; otherwise every tree is
// evaluated by the row-wise interpreter, with the reason recorded on
// the result.
func (s *Store) Query(name string, expr *query.Expr, optFns ...QueryOption) (*QueryResult, error) {
	start := time.Now()
	res, err := s.query(name, expr, optFns)
	err = translateError(name, err)

	vectorized, matches := false, 0
	if res != nil {
		vectorized = res.Vectorized
		matches = len(res.Matches)
	}
	s.metrics.RecordQuery(vectorized, time.Since(start), err)
	s.logger.LogQuery(context.Background(), name, vectorized, matches, err)
	return res, err
}

func (s *Store) query(name string, expr *query.Expr, optFns []QueryOption) (*QueryResult, error) {
	var o queryOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	d, err := s.getBatched(name)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	// Schema and evaluation both need every batch, so decode through
	// the warm cache up front.
	decoded := make([]*forest.Forest, d.BatchCount())
	for i := uint32(0); i < d.BatchCount(); i++ {
		b, err := d.Batch(i)
		if err != nil {
			return nil, err
		}
		decoded[i] = &b.Forest
	}

	schema := o.schema
	if schema == nil {
		schema = query.NewSchema()
		for _, f := range decoded {
			schema.Merge(query.Infer(f))
		}
	}

	res := &QueryResult{IsAggregate: expr.Op.IsAggregate()}

	// One compile decides the engine for every batch: analysis depends
	// only on the expression and the schema.
	prog, unsup := query.Compile(expr, schema)
	res.Vectorized = unsup == nil
	res.Fallback = unsup

	interp := query.NewInterpreter()
	cols := make([]*query.Column, len(decoded))
	for i, f := range decoded {
		if prog != nil {
			cols[i] = prog.EvalBatch(f)
			continue
		}
		col, err := interp.EvalBatch(expr, f)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}

	if res.IsAggregate {
		res.Value = query.Fold(expr.Op, cols...)
		return res, nil
	}

	perBatch := uint64(d.TreesPerBatch())
	for bi, col := range cols {
		for i := 0; i < col.Len(); i++ {
			if col.Truth(i) {
				res.Matches = append(res.Matches, uint64(bi)*perBatch+uint64(i))
			}
		}
	}
	return res, nil
}
