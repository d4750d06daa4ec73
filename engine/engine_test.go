package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arbordb/batch"
)

func openTest(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName([]byte("orders")))
	assert.ErrorIs(t, ValidateName(nil), ErrInvalidName)
	assert.ErrorIs(t, ValidateName([]byte{}), ErrInvalidName)
	assert.ErrorIs(t, ValidateName([]byte("a\x00b")), ErrInvalidName)
}

func TestBatchKeyOrdering(t *testing.T) {
	name := []byte("ds")
	k0 := BatchKey(name, 0)
	k1 := BatchKey(name, 1)
	k256 := BatchKey(name, 256)

	assert.Equal(t, append([]byte("ds\x00"), 0, 0, 0, 0), k0)
	// Big-endian indices sort lexicographically by index.
	assert.Equal(t, -1, compareBytes(k0, k1))
	assert.Equal(t, -1, compareBytes(k1, k256))
}

func compareBytes(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

func TestMetaRoundTrip(t *testing.T) {
	seven := 7
	m := &Meta{
		Generation:    42,
		TreeCount:     1000,
		BatchCount:    3,
		TreesPerBatch: 334,
		Policy: batch.Policy{
			TargetBytes:   1 << 20,
			MinTrees:      1,
			MaxTrees:      5000,
			TreesPerBatch: &seven,
		},
		BatchDigests: make([]Digest, 3),
	}
	m.DictDigest[0] = 0xaa
	m.BatchDigests[2][31] = 0xbb

	got, err := DecodeMeta(EncodeMeta(m))
	require.NoError(t, err)
	assert.Equal(t, m.Generation, got.Generation)
	assert.Equal(t, m.TreeCount, got.TreeCount)
	assert.Equal(t, m.BatchCount, got.BatchCount)
	assert.Equal(t, m.TreesPerBatch, got.TreesPerBatch)
	require.NotNil(t, got.Policy.TreesPerBatch)
	assert.Equal(t, 7, *got.Policy.TreesPerBatch)
	assert.Equal(t, m.DictDigest, got.DictDigest)
	assert.Equal(t, m.BatchDigests, got.BatchDigests)
}

func TestMetaDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeMeta([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptMeta)

	m := &Meta{BatchCount: 2}
	buf := EncodeMeta(m) // declares 2 digests but carries none
	_, err = DecodeMeta(buf)
	assert.ErrorIs(t, err, ErrCorruptMeta)
}

func TestPutGetDeleteCycle(t *testing.T) {
	e := openTest(t)
	name := []byte("ds")

	w, err := e.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.PutMeta(name, &Meta{Generation: 1}))
	require.NoError(t, w.PutDict(name, []byte("dict-bytes")))
	require.NoError(t, w.PutBatch(name, 0, []byte("batch-0")))
	require.NoError(t, w.PutBatch(name, 1, []byte("batch-1")))
	require.NoError(t, w.Commit())

	r, err := e.BeginRead()
	require.NoError(t, err)
	m, ok, err := r.Meta(name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), m.Generation)

	d, ok := r.Dict(name)
	require.True(t, ok)
	assert.Equal(t, []byte("dict-bytes"), d.Data())
	d.Close()

	b1, ok := r.Batch(name, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("batch-1"), b1.Data())
	b1.Close()

	_, ok = r.Batch(name, 2)
	assert.False(t, ok)
	r.Close()

	w, err = e.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.DeleteBatchRange(name, 1))
	require.NoError(t, w.Commit())

	r, err = e.BeginRead()
	require.NoError(t, err)
	b0, ok := r.Batch(name, 0)
	assert.True(t, ok)
	b0.Close()
	_, ok = r.Batch(name, 1)
	assert.False(t, ok)
	r.Close()
}

func TestSnapshotIsolation(t *testing.T) {
	e := openTest(t)
	name := []byte("ds")

	w, err := e.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.PutBatch(name, 0, []byte("v1")))
	require.NoError(t, w.Commit())

	// A reader that begins before the writer commits must see the
	// pre-commit state for its whole lifetime.
	r1, err := e.BeginRead()
	require.NoError(t, err)

	w, err = e.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.PutBatch(name, 0, []byte("v2")))
	require.NoError(t, w.Commit())

	b, ok := r1.Batch(name, 0)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), b.Data())
	b.Close()

	r2, err := e.BeginRead()
	require.NoError(t, err)
	b2, ok := r2.Batch(name, 0)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), b2.Data())
	b2.Close()

	r1.Close()
	r2.Close()
}

func TestRollbackDiscardsWrites(t *testing.T) {
	e := openTest(t)
	name := []byte("ds")

	w, err := e.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.PutBatch(name, 0, []byte("uncommitted")))
	w.Rollback()

	r, err := e.BeginRead()
	require.NoError(t, err)
	_, ok := r.Batch(name, 0)
	assert.False(t, ok)
	r.Close()
}

func TestPinnedValueOutlivesTxHandle(t *testing.T) {
	e := openTest(t)
	name := []byte("ds")

	w, err := e.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.PutBatch(name, 0, []byte("pinned")))
	require.NoError(t, w.Commit())

	r, err := e.BeginRead()
	require.NoError(t, err)
	b, ok := r.Batch(name, 0)
	require.True(t, ok)
	r.Close() // tx handle closed, value still pinned

	assert.Equal(t, []byte("pinned"), b.Data())
	b.Close()
}

func TestFormatVersionGate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	e, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// Reopen: same version passes.
	e, err = Open(path, Options{})
	require.NoError(t, err)

	// Corrupt the stored version and reopen.
	w, err := e.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.tx.Bucket(bucketFormat).Put(keyFormatVersion, encodeU32(FormatVersion+1)))
	require.NoError(t, w.Commit())
	require.NoError(t, e.Close())

	_, err = Open(path, Options{})
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	e, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	ro, err := Open(path, Options{ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.BeginWrite()
	assert.ErrorIs(t, err, ErrReadOnly)
}
