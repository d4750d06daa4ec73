package batch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/arbordb/forest"
)

// ErrInvalidPolicy is wrapped by every policy validation failure.
var ErrInvalidPolicy = errors.New("batch: invalid policy")

// Policy controls how many trees go into each batch.
//
// When TreesPerBatch is set it always wins. Otherwise the planner
// derives a tree count from TargetBytes and clamps it to
// [MinTrees, MaxTrees].
type Policy struct {
	// TargetBytes is the desired encoded size of one batch.
	TargetBytes int64
	// MinTrees and MaxTrees bound the derived trees-per-batch.
	MinTrees int
	MaxTrees int
	// TreesPerBatch, when non-nil, overrides the byte-target sizing.
	// An explicit zero is a configuration error.
	TreesPerBatch *int
}

// DefaultPolicy aims for batches of roughly one megabyte.
func DefaultPolicy() Policy {
	return Policy{
		TargetBytes: 1 << 20,
		MinTrees:    1,
		MaxTrees:    1 << 16,
	}
}

// FixedTrees returns a policy with an explicit trees-per-batch override.
func FixedTrees(n int) Policy {
	p := DefaultPolicy()
	p.TreesPerBatch = &n
	return p
}

// Validate rejects contradictory or degenerate policies. It runs before
// any storage is touched.
func (p Policy) Validate() error {
	if p.TreesPerBatch != nil {
		if *p.TreesPerBatch <= 0 {
			return fmt.Errorf("%w: trees per batch must be positive, got %d", ErrInvalidPolicy, *p.TreesPerBatch)
		}
		return nil
	}
	if p.TargetBytes <= 0 {
		return fmt.Errorf("%w: target bytes must be positive, got %d", ErrInvalidPolicy, p.TargetBytes)
	}
	if p.MinTrees <= 0 {
		return fmt.Errorf("%w: min trees must be positive, got %d", ErrInvalidPolicy, p.MinTrees)
	}
	if p.MinTrees > p.MaxTrees {
		return fmt.Errorf("%w: min trees %d exceeds max trees %d", ErrInvalidPolicy, p.MinTrees, p.MaxTrees)
	}
	return nil
}

// Plan decides the trees-per-batch for f under p. The per-tree cost is
// estimated from the unsliced forest.
func Plan(f *forest.Forest, p Policy) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if p.TreesPerBatch != nil {
		return *p.TreesPerBatch, nil
	}
	if f.TreeCount() == 0 {
		return p.MinTrees, nil
	}
	perTree := estimateBytes(f) / int64(f.TreeCount())
	if perTree < 1 {
		perTree = 1
	}
	t := int(p.TargetBytes / perTree)
	if t < p.MinTrees {
		t = p.MinTrees
	}
	if t > p.MaxTrees {
		t = p.MaxTrees
	}
	return t, nil
}

// Count returns the number of batches covering n trees at t trees per
// batch.
func Count(n, t int) int {
	if n == 0 {
		return 0
	}
	return (n + t - 1) / t
}
