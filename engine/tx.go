package engine

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/hupe1980/arbordb/pinned"
)

// ReadTx is a snapshot read transaction. Values are handed out as
// pinned byte handles: the snapshot stays alive until the transaction
// handle and every pinned value derived from it have been closed.
type ReadTx struct {
	tx   *bolt.Tx
	root pinned.Bytes
}

// BeginRead starts a read transaction over the current snapshot.
func (e *Engine) BeginRead() (*ReadTx, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("engine: begin read: %w", err)
	}
	r := &ReadTx{tx: tx}
	r.root = pinned.New(nil, func() { _ = tx.Rollback() })
	return r, nil
}

// Close releases the transaction handle. The underlying snapshot is
// rolled back once every pinned value has also been closed.
func (r *ReadTx) Close() { r.root.Close() }

// Meta loads and decodes dataset metadata.
func (r *ReadTx) Meta(name []byte) (*Meta, bool, error) {
	v := r.tx.Bucket(bucketMeta).Get(name)
	if v == nil {
		return nil, false, nil
	}
	m, err := DecodeMeta(v)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// ForEachMeta calls fn for every dataset, in lexicographic name order.
// The name slice is only valid for the duration of the call.
func (r *ReadTx) ForEachMeta(fn func(name []byte, m *Meta) error) error {
	return r.tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
		m, err := DecodeMeta(v)
		if err != nil {
			return err
		}
		return fn(k, m)
	})
}

// Dict returns the pinned dictionary payload for name.
func (r *ReadTx) Dict(name []byte) (pinned.Bytes, bool) {
	v := r.tx.Bucket(bucketDict).Get(name)
	if v == nil {
		return pinned.Bytes{}, false
	}
	return r.root.Derive(v), true
}

// HasBatch reports whether a payload is stored for (name, index)
// without pinning it.
func (r *ReadTx) HasBatch(name []byte, index uint32) bool {
	return r.tx.Bucket(bucketBatch).Get(BatchKey(name, index)) != nil
}

// Batch returns the pinned batch payload for (name, index).
func (r *ReadTx) Batch(name []byte, index uint32) (pinned.Bytes, bool) {
	v := r.tx.Bucket(bucketBatch).Get(BatchKey(name, index))
	if v == nil {
		return pinned.Bytes{}, false
	}
	return r.root.Derive(v), true
}

// WriteTx is the store-wide exclusive write transaction. Dropping it
// without Commit discards all buffered writes.
type WriteTx struct {
	tx *bolt.Tx
}

// BeginWrite starts the single write transaction. It blocks while
// another write transaction is active.
func (e *Engine) BeginWrite() (*WriteTx, error) {
	if e.readOnly {
		return nil, ErrReadOnly
	}
	tx, err := e.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("engine: begin write: %w", err)
	}
	return &WriteTx{tx: tx}, nil
}

// Meta loads dataset metadata inside the write transaction.
func (w *WriteTx) Meta(name []byte) (*Meta, bool, error) {
	v := w.tx.Bucket(bucketMeta).Get(name)
	if v == nil {
		return nil, false, nil
	}
	m, err := DecodeMeta(v)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// PutMeta stores dataset metadata.
func (w *WriteTx) PutMeta(name []byte, m *Meta) error {
	return w.tx.Bucket(bucketMeta).Put(name, EncodeMeta(m))
}

// DeleteMeta removes dataset metadata.
func (w *WriteTx) DeleteMeta(name []byte) error {
	return w.tx.Bucket(bucketMeta).Delete(name)
}

// PutDict stores the dictionary payload.
func (w *WriteTx) PutDict(name, payload []byte) error {
	return w.tx.Bucket(bucketDict).Put(name, payload)
}

// DeleteDict removes the dictionary payload.
func (w *WriteTx) DeleteDict(name []byte) error {
	return w.tx.Bucket(bucketDict).Delete(name)
}

// PutBatch stores one batch payload.
func (w *WriteTx) PutBatch(name []byte, index uint32, payload []byte) error {
	return w.tx.Bucket(bucketBatch).Put(BatchKey(name, index), payload)
}

// DeleteBatch removes one batch payload.
func (w *WriteTx) DeleteBatch(name []byte, index uint32) error {
	return w.tx.Bucket(bucketBatch).Delete(BatchKey(name, index))
}

// DeleteBatchRange removes every batch of name with index >= from.
// Big-endian indices make this a single ordered cursor scan.
func (w *WriteTx) DeleteBatchRange(name []byte, from uint32) error {
	prefix := BatchPrefix(name)
	c := w.tx.Bucket(bucketBatch).Cursor()
	for k, _ := c.Seek(BatchKey(name, from)); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// Commit atomically publishes every buffered write.
func (w *WriteTx) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("engine: commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit.
func (w *WriteTx) Rollback() {
	_ = w.tx.Rollback()
}
