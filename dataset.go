package arbordb

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/cache"
	"github.com/hupe1980/arbordb/codec"
	"github.com/hupe1980/arbordb/engine"
	"github.com/hupe1980/arbordb/forest"
)

// Dataset is a read handle over one generation of a stored dataset. It
// holds a snapshot read transaction open, so batch payloads can be
// decoded without copying; Close releases the snapshot. A handle keeps
// seeing its generation even while writers commit newer ones.
type Dataset struct {
	store *Store
	name  string
	meta  *engine.Meta
	tx    *engine.ReadTx
	dict  *forest.Dictionary
}

// GetBatched opens dataset name for batched reading. The caller must
// Close the handle.
func (s *Store) GetBatched(name string) (*Dataset, error) {
	start := time.Now()
	d, err := s.getBatched(name)
	err = translateError(name, err)
	s.metrics.RecordGet(time.Since(start), err)
	batches := 0
	if d != nil {
		batches = int(d.meta.BatchCount)
	}
	s.logger.LogGet(context.Background(), name, batches, err)
	return d, err
}

func (s *Store) getBatched(name string) (*Dataset, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	nameKey := []byte(name)
	if err := engine.ValidateName(nameKey); err != nil {
		return nil, err
	}

	tx, err := s.engine.BeginRead()
	if err != nil {
		return nil, err
	}

	meta, found, err := tx.Meta(nameKey)
	if err != nil {
		tx.Close()
		return nil, err
	}
	if !found {
		tx.Close()
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	dictPayload, ok := tx.Dict(nameKey)
	if !ok {
		tx.Close()
		return nil, &ErrDictMissing{Name: name}
	}
	strings, err := codec.DecodeDict(dictPayload.Data())
	dictPayload.Close()
	if err != nil {
		tx.Close()
		return nil, err
	}

	// Every batch the metadata names must be present before the handle
	// is handed out, so a damaged dataset fails at open rather than
	// mid-iteration. Key existence only, no payloads are decoded.
	for i := uint32(0); i < meta.BatchCount; i++ {
		if !tx.HasBatch(nameKey, i) {
			tx.Close()
			return nil, &ErrBatchMissing{Name: name, Index: i}
		}
	}

	return &Dataset{
		store: s,
		name:  name,
		meta:  meta,
		tx:    tx,
		dict:  forest.DictionaryFromStrings(strings),
	}, nil
}

// Get materializes dataset name as one forest, concatenating all
// batches. Node and pool indices are rewritten to the combined arena;
// dictionary IDs are already global and carry over unchanged.
func (s *Store) Get(name string) (*forest.Forest, error) {
	d, err := s.GetBatched(name)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.Materialize()
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Generation returns the snapshot's dataset generation.
func (d *Dataset) Generation() uint64 { return d.meta.Generation }

// TreeCount returns the total number of trees.
func (d *Dataset) TreeCount() uint64 { return d.meta.TreeCount }

// BatchCount returns the number of stored batches.
func (d *Dataset) BatchCount() uint32 { return d.meta.BatchCount }

// TreesPerBatch returns the batch size the layout was produced with.
// Every batch except possibly the last holds exactly this many trees.
func (d *Dataset) TreesPerBatch() uint32 { return d.meta.TreesPerBatch }

// Dict returns the dataset-global string dictionary.
func (d *Dataset) Dict() *forest.Dictionary { return d.dict }

// Close releases the snapshot. Batches obtained from BatchView become
// invalid once every handle derived from this snapshot is closed.
func (d *Dataset) Close() error {
	d.tx.Close()
	return nil
}

// Batch returns batch index, serving from the warm cache when possible
// and decoding an owned copy (which is then cached) otherwise. The
// returned batch stays valid after the handle is closed.
func (d *Dataset) Batch(index uint32) (*batch.Batch, error) {
	if index >= d.meta.BatchCount {
		return nil, fmt.Errorf("dataset %q: batch index %d out of range [0,%d)", d.name, index, d.meta.BatchCount)
	}
	key := cache.Key{Name: d.name, Generation: d.meta.Generation, Batch: index}
	if b, ok := d.store.cache.Get(key); ok {
		return b, nil
	}

	p, ok := d.tx.Batch([]byte(d.name), index)
	if !ok {
		return nil, &ErrBatchMissing{Name: d.name, Index: index}
	}
	defer p.Close()

	b, err := codec.DecodeBatchOwned(p.Data())
	if err != nil {
		return nil, corruptedBatch(d.name, index, err)
	}
	b.Dict = d.dict
	d.store.cache.Set(key, b)
	return b, nil
}

// BatchView returns batch index decoded zero-copy over the snapshot's
// pinned payload bytes where alignment permits. The batch must be
// closed before the handle, and is never cached.
func (d *Dataset) BatchView(index uint32) (*batch.Batch, error) {
	if index >= d.meta.BatchCount {
		return nil, fmt.Errorf("dataset %q: batch index %d out of range [0,%d)", d.name, index, d.meta.BatchCount)
	}
	p, ok := d.tx.Batch([]byte(d.name), index)
	if !ok {
		return nil, &ErrBatchMissing{Name: d.name, Index: index}
	}
	defer p.Close()

	b, err := codec.DecodeBatchView(p)
	if err != nil {
		return nil, corruptedBatch(d.name, index, err)
	}
	b.Dict = d.dict
	return b, nil
}

// Batches calls fn for every batch in order, reusing the warm cache.
// Iteration stops on the first error.
func (d *Dataset) Batches(fn func(index uint32, b *batch.Batch) error) error {
	for i := uint32(0); i < d.meta.BatchCount; i++ {
		b, err := d.Batch(i)
		if err != nil {
			return err
		}
		if err := fn(i, b); err != nil {
			return err
		}
	}
	return nil
}

// Materialize concatenates all batches into one forest.
func (d *Dataset) Materialize() (*forest.Forest, error) {
	batches := make([]*batch.Batch, 0, d.meta.BatchCount)
	var views []*batch.Batch
	defer func() {
		for _, v := range views {
			v.Close()
		}
	}()

	for i := uint32(0); i < d.meta.BatchCount; i++ {
		key := cache.Key{Name: d.name, Generation: d.meta.Generation, Batch: i}
		if b, ok := d.store.cache.Get(key); ok {
			batches = append(batches, b)
			continue
		}
		b, err := d.BatchView(i)
		if err != nil {
			return nil, err
		}
		views = append(views, b)
		batches = append(batches, b)
	}
	return batch.Concat(batches, d.dict), nil
}
