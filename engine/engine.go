// Package engine wraps the transactional key-value substrate (bbolt)
// behind the three logical tables of the store: dataset metadata,
// dictionaries, and batches. It owns key construction, the store
// format version gate, and the mapping from read-transaction value
// ranges to pinned byte handles.
//
// Concurrency is inherited from the substrate: exactly one write
// transaction store-wide, any number of concurrent snapshot readers.
package engine

import (
	"errors"
	"fmt"
	"io"

	bolt "go.etcd.io/bbolt"
)

// FormatVersion is the store-level format this build reads and writes.
// Unknown or newer on-disk versions are rejected at Open; there is no
// in-place migration.
const FormatVersion uint32 = 1

var (
	bucketFormat = []byte("format")
	bucketMeta   = []byte("meta")
	bucketDict   = []byte("dict")
	bucketBatch  = []byte("batch")

	keyFormatVersion = []byte("version")
)

// ErrVersionMismatch is returned when the on-disk store format is not
// FormatVersion. The caller must not proceed.
var ErrVersionMismatch = errors.New("engine: unsupported store format version")

// ErrReadOnly is returned for mutations on a read-only engine.
var ErrReadOnly = errors.New("engine: store is read-only")

// DurabilityMode controls how eagerly commits reach stable storage.
type DurabilityMode int

const (
	// DurabilityFull fsyncs data and freelist on every commit.
	DurabilityFull DurabilityMode = iota
	// DurabilityRelaxed fsyncs data but defers the freelist sync,
	// trading a slower recovery scan for faster commits.
	DurabilityRelaxed
	// DurabilityNone skips fsync entirely. A crash may lose recent
	// commits; committed state remains consistent.
	DurabilityNone
)

// Options configures Open.
type Options struct {
	Durability DurabilityMode
	ReadOnly   bool
}

// Engine is an open substrate handle.
type Engine struct {
	db       *bolt.DB
	readOnly bool
}

// Open opens (creating if needed) the store file at path, applies the
// durability mode, and gates on the store format version.
func Open(path string, opts Options) (*Engine, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}

	switch opts.Durability {
	case DurabilityRelaxed:
		db.NoFreelistSync = true
	case DurabilityNone:
		db.NoSync = true
	}

	e := &Engine{db: db, readOnly: opts.ReadOnly}
	if err := e.checkFormat(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) checkFormat() error {
	if e.readOnly {
		return e.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketFormat)
			if b == nil {
				return fmt.Errorf("%w: store has no format marker", ErrVersionMismatch)
			}
			return verifyFormat(b.Get(keyFormatVersion))
		})
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFormat, bucketMeta, bucketDict, bucketBatch} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("engine: create bucket %s: %w", name, err)
			}
		}
		b := tx.Bucket(bucketFormat)
		if v := b.Get(keyFormatVersion); v != nil {
			return verifyFormat(v)
		}
		return b.Put(keyFormatVersion, encodeU32(FormatVersion))
	})
}

func verifyFormat(v []byte) error {
	if len(v) != 4 {
		return fmt.Errorf("%w: malformed format marker", ErrVersionMismatch)
	}
	if got := decodeU32(v); got != FormatVersion {
		return fmt.Errorf("%w: on-disk version %d, supported version %d", ErrVersionMismatch, got, FormatVersion)
	}
	return nil
}

// Snapshot streams a consistent copy of the whole store file to w and
// returns the number of bytes written. It runs inside one read
// transaction, so concurrent writers are not blocked.
func (e *Engine) Snapshot(w io.Writer) (int64, error) {
	var n int64
	err := e.db.View(func(tx *bolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("engine: snapshot: %w", err)
	}
	return n, nil
}

// Path returns the store file path.
func (e *Engine) Path() string { return e.db.Path() }

// ReadOnly reports whether the engine was opened read-only.
func (e *Engine) ReadOnly() bool { return e.readOnly }

// Close closes the underlying database. Outstanding read transactions
// must be closed first.
func (e *Engine) Close() error { return e.db.Close() }
