package arbordb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/cache"
	"github.com/hupe1980/arbordb/codec"
	"github.com/hupe1980/arbordb/engine"
	"github.com/hupe1980/arbordb/forest"
)

// Store is an embedded, durable store for named collections of ordered
// tree values. All methods are safe for concurrent use; writes are
// serialized by the substrate while readers work on immutable
// snapshots.
type Store struct {
	engine  *engine.Engine
	cache   *cache.Cache
	enc     codec.Encoder
	policy  batch.Policy
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// Open opens (creating if needed) the store file at path.
func Open(path string, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)
	if err := o.policy.Validate(); err != nil {
		return nil, err
	}

	eng, err := engine.Open(path, engine.Options{
		Durability: o.durability,
		ReadOnly:   o.readOnly,
	})
	if err != nil {
		return nil, err
	}

	o.logger.Debug("store opened",
		"path", path,
		"read_only", o.readOnly,
		"cache_bytes", o.cacheBytes,
	)

	return &Store{
		engine:  eng,
		cache:   cache.New(o.cacheBytes),
		policy:  o.policy,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}, nil
}

// Close releases the store. Open dataset handles must be closed first.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cache.Purge()
	return s.engine.Close()
}

// Put writes the trees of f as dataset name using the store's default
// batch policy. See PutWithPolicy.
func (s *Store) Put(name string, f *forest.Forest) (*PutResult, error) {
	return s.PutWithPolicy(name, f, s.policy)
}

// PutResult reports what a write touched.
type PutResult struct {
	// Generation is the dataset generation after the write.
	Generation uint64
	// TreeCount and BatchCount describe the committed layout.
	TreeCount  int
	BatchCount int
	// Written and Deleted count batches stored and removed. Batches
	// whose content digest matched the previous generation are skipped
	// and counted in neither.
	Written int
	Deleted int
	// Unchanged is set when every payload was byte-identical to the
	// stored generation: zero batch or dictionary bytes were written,
	// only the metadata record was refreshed. The generation still
	// advances.
	Unchanged bool
}

// PutWithPolicy replaces dataset name with the trees of f, sliced
// according to p. A zero-tree forest is valid and stores an empty
// dataset. The write is incremental: batches whose encoded payload
// digest matches the stored generation are not rewritten, a shrinking
// dataset has its surplus batch suffix deleted, and the whole
// transition commits atomically. The dataset generation increases by
// exactly one per successful write, unchanged content included.
func (s *Store) PutWithPolicy(name string, f *forest.Forest, p batch.Policy) (*PutResult, error) {
	start := time.Now()
	res, err := s.put(name, f, p)
	err = translateError(name, err)

	written, deleted := 0, 0
	if res != nil {
		written, deleted = res.Written, res.Deleted
	}
	s.metrics.RecordPut(written, deleted, time.Since(start), err)
	var gen uint64
	if res != nil {
		gen = res.Generation
	}
	s.logger.LogPut(context.Background(), name, written, deleted, gen, err)
	return res, err
}

func (s *Store) put(name string, f *forest.Forest, p batch.Policy) (*PutResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	nameKey := []byte(name)
	if err := engine.ValidateName(nameKey); err != nil {
		return nil, err
	}
	perBatch, err := batch.Plan(f, p)
	if err != nil {
		return nil, err
	}
	count := batch.Count(f.TreeCount(), perBatch)

	dictPayload, err := s.enc.EncodeDict(f.Dict.Strings())
	if err != nil {
		return nil, err
	}
	dictDigest := blake2b.Sum256(dictPayload)

	payloads := make([][]byte, count)
	digests := make([]engine.Digest, count)
	for i := 0; i < count; i++ {
		lo := i * perBatch
		hi := lo + perBatch
		if hi > f.TreeCount() {
			hi = f.TreeCount()
		}
		b := batch.Slice(f, lo, hi)
		payload, err := s.enc.EncodeBatch(b)
		if err != nil {
			return nil, err
		}
		payloads[i] = payload
		digests[i] = blake2b.Sum256(payload)
	}

	w, err := s.engine.BeginWrite()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			w.Rollback()
		}
	}()

	old, found, err := w.Meta(nameKey)
	if err != nil {
		return nil, err
	}

	res := &PutResult{TreeCount: f.TreeCount(), BatchCount: count}

	dictWritten := !found || old.DictDigest != dictDigest
	if dictWritten {
		if err := w.PutDict(nameKey, dictPayload); err != nil {
			return nil, err
		}
	}
	for i := 0; i < count; i++ {
		if found && i < int(old.BatchCount) && old.BatchDigests[i] == digests[i] {
			continue
		}
		if err := w.PutBatch(nameKey, uint32(i), payloads[i]); err != nil {
			return nil, err
		}
		res.Written++
	}
	if found && int(old.BatchCount) > count {
		if err := w.DeleteBatchRange(nameKey, uint32(count)); err != nil {
			return nil, err
		}
		res.Deleted = int(old.BatchCount) - count
	}

	res.Unchanged = found && !dictWritten && res.Written == 0 && res.Deleted == 0

	// The metadata record is rewritten even when every payload digest
	// matched: the generation advances on every successful put, and the
	// stored policy tracks the one the caller supplied.
	res.Generation = 1
	if found {
		res.Generation = old.Generation + 1
	}
	meta := &engine.Meta{
		Generation:    res.Generation,
		TreeCount:     uint64(f.TreeCount()),
		BatchCount:    uint32(count),
		TreesPerBatch: uint32(perBatch),
		Policy:        p,
		DictDigest:    dictDigest,
		BatchDigests:  digests,
	}
	if err := w.PutMeta(nameKey, meta); err != nil {
		return nil, err
	}
	if err := w.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.cache.Invalidate(name, res.Generation)
	return res, nil
}

// Delete removes dataset name and all of its stored payloads.
func (s *Store) Delete(name string) error {
	start := time.Now()
	err := translateError(name, s.delete(name))
	s.metrics.RecordDelete(time.Since(start), err)
	s.logger.LogDelete(context.Background(), name, err)
	return err
}

func (s *Store) delete(name string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	nameKey := []byte(name)
	if err := engine.ValidateName(nameKey); err != nil {
		return err
	}

	w, err := s.engine.BeginWrite()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			w.Rollback()
		}
	}()

	_, found, err := w.Meta(nameKey)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := w.DeleteMeta(nameKey); err != nil {
		return err
	}
	if err := w.DeleteDict(nameKey); err != nil {
		return err
	}
	if err := w.DeleteBatchRange(nameKey, 0); err != nil {
		return err
	}
	if err := w.Commit(); err != nil {
		return err
	}
	committed = true

	// Generation 0 is never assigned, so this drops every cached batch
	// of the dataset.
	s.cache.Invalidate(name, 0)
	return nil
}

// Datasets returns the names of all stored datasets in key order.
func (s *Store) Datasets() ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	r, err := s.engine.BeginRead()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var names []string
	err = r.ForEachMeta(func(name []byte, _ *engine.Meta) error {
		names = append(names, string(name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Stat describes a stored dataset without decoding any payloads.
type Stat struct {
	Name          string
	Generation    uint64
	TreeCount     uint64
	BatchCount    uint32
	TreesPerBatch uint32
	Policy        batch.Policy
}

// Stat returns the metadata of dataset name.
func (s *Store) Stat(name string) (*Stat, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	r, err := s.engine.BeginRead()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	m, found, err := r.Meta([]byte(name))
	if err != nil {
		return nil, translateError(name, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return &Stat{
		Name:          name,
		Generation:    m.Generation,
		TreeCount:     m.TreeCount,
		BatchCount:    m.BatchCount,
		TreesPerBatch: m.TreesPerBatch,
		Policy:        m.Policy,
	}, nil
}

// CacheStats returns warm-cache hit and miss counters.
func (s *Store) CacheStats() (hits, misses int64) {
	return s.cache.Stats()
}
