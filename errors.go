package arbordb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/codec"
	"github.com/hupe1980/arbordb/engine"
)

var (
	// ErrNotFound is returned when the named dataset does not exist.
	ErrNotFound = errors.New("dataset not found")
	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store is closed")
	// ErrReadOnly is returned for mutations on a read-only store.
	ErrReadOnly = errors.New("store is read-only")
)

// ErrCorrupted indicates a stored payload failed validation during
// decode. Batch is -1 when the dictionary (or metadata record) is the
// corrupt part.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrCorrupted struct {
	Name  string
	Batch int
	cause error
}

func (e *ErrCorrupted) Error() string {
	if e.Batch < 0 {
		return fmt.Sprintf("dataset %q is corrupted", e.Name)
	}
	return fmt.Sprintf("dataset %q batch %d is corrupted", e.Name, e.Batch)
}

func (e *ErrCorrupted) Unwrap() error { return e.cause }

// ErrBatchMissing indicates a batch named by the dataset metadata is
// absent from the batch table. This can only happen when the store file
// was damaged outside a transaction.
type ErrBatchMissing struct {
	Name  string
	Index uint32
}

func (e *ErrBatchMissing) Error() string {
	return fmt.Sprintf("dataset %q: batch %d recorded in metadata but not stored", e.Name, e.Index)
}

// ErrDictMissing indicates the dataset's dictionary payload is absent.
type ErrDictMissing struct {
	Name string
}

func (e *ErrDictMissing) Error() string {
	return fmt.Sprintf("dataset %q: dictionary recorded in metadata but not stored", e.Name)
}

func translateError(name string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, engine.ErrReadOnly) {
		return fmt.Errorf("%w: %w", ErrReadOnly, err)
	}
	if errors.Is(err, engine.ErrInvalidName) || errors.Is(err, batch.ErrInvalidPolicy) {
		return err
	}

	// Decode and metadata failures unify under ErrCorrupted.
	if errors.Is(err, codec.ErrCorrupted) || errors.Is(err, engine.ErrCorruptMeta) {
		return &ErrCorrupted{Name: name, Batch: -1, cause: err}
	}

	return err
}

func corruptedBatch(name string, index uint32, err error) error {
	return &ErrCorrupted{Name: name, Batch: int(index), cause: err}
}
