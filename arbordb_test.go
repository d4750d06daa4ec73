package arbordb

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/forest"
	"github.com/hupe1980/arbordb/query"
)

func newTestStore(t *testing.T, optFns ...Option) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "arbor.db"), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func numberForest(t *testing.T, n int) *forest.Forest {
	t.Helper()
	f := forest.New()
	for i := 0; i < n; i++ {
		f.Append(forest.Object(
			forest.F("id", forest.Int(int64(i))),
			forest.F("name", forest.String(fmt.Sprintf("tree-%03d", i))),
		))
	}
	return f
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)

	f := forest.New()
	f.Append(forest.Object(
		forest.F("id", forest.Int(1)),
		forest.F("tags", forest.Array(forest.Interned("red"), forest.Interned("blue"))),
		forest.F("score", forest.Float(0.5)),
		forest.F("deleted", forest.TypedNull(forest.KindBool)),
	))
	f.Append(forest.Array(forest.Int(1), forest.Null(), forest.String("x")))
	f.Append(forest.Binary([]byte{0xde, 0xad}))

	res, err := store.Put("things", f)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Generation)
	assert.Equal(t, 3, res.TreeCount)

	out, err := store.Get("things")
	require.NoError(t, err)
	require.Equal(t, f.TreeCount(), out.TreeCount())
	for i := 0; i < f.TreeCount(); i++ {
		assert.True(t, f.Value(i).Equal(out.Value(i)), "tree %d", i)
	}
}

func TestPutBatchLayout(t *testing.T) {
	store := newTestStore(t)
	f := numberForest(t, 25)

	res, err := store.PutWithPolicy("nums", f, batch.FixedTrees(10))
	require.NoError(t, err)
	assert.Equal(t, 3, res.BatchCount)
	assert.Equal(t, 3, res.Written)

	ds, err := store.GetBatched("nums")
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, uint32(3), ds.BatchCount())
	assert.Equal(t, uint32(10), ds.TreesPerBatch())
	assert.Equal(t, uint64(25), ds.TreeCount())

	b, err := ds.Batch(2)
	require.NoError(t, err)
	assert.Equal(t, 5, b.TreeCount(), "last batch holds the remainder")

	_, err = ds.Batch(3)
	assert.Error(t, err)
}

func TestPutUnchangedWritesOnlyMetadata(t *testing.T) {
	store := newTestStore(t)
	f := numberForest(t, 20)

	res, err := store.PutWithPolicy("nums", f, batch.FixedTrees(5))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Generation)

	// Logically identical content encodes byte-identically, so a
	// re-put of equal data stores zero payload bytes. The metadata
	// record is still refreshed and the generation still advances.
	res, err = store.PutWithPolicy("nums", numberForest(t, 20), batch.FixedTrees(5))
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	assert.Equal(t, uint64(2), res.Generation)
	assert.Zero(t, res.Written)
	assert.Zero(t, res.Deleted)

	st, err := store.Stat("nums")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Generation)
}

func TestPutUnchangedRefreshesPolicy(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("nums", numberForest(t, 4), batch.FixedTrees(10))
	require.NoError(t, err)

	// Same single-batch payload under a different trees-per-batch
	// override: no payload write, but the stored policy follows the
	// caller's.
	res, err := store.PutWithPolicy("nums", numberForest(t, 4), batch.FixedTrees(20))
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	assert.Zero(t, res.Written)

	st, err := store.Stat("nums")
	require.NoError(t, err)
	require.NotNil(t, st.Policy.TreesPerBatch)
	assert.Equal(t, 20, *st.Policy.TreesPerBatch)
	assert.Equal(t, uint32(20), st.TreesPerBatch)
}

func TestPutIncremental(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("nums", numberForest(t, 20), batch.FixedTrees(5))
	require.NoError(t, err)

	// Change one tree in the last batch: only that batch is rewritten.
	f := numberForest(t, 20)
	f.Pools.Int.Values[17] = 1700

	res, err := store.PutWithPolicy("nums", f, batch.FixedTrees(5))
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, uint64(2), res.Generation)
	assert.Equal(t, 1, res.Written)
	assert.Zero(t, res.Deleted)

	out, err := store.Get("nums")
	require.NoError(t, err)
	assert.True(t, out.Value(17).Equal(forest.Object(
		forest.F("id", forest.Int(1700)),
		forest.F("name", forest.String("tree-017")),
	)))
}

func TestPutShrinkDeletesSuffix(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("nums", numberForest(t, 20), batch.FixedTrees(5))
	require.NoError(t, err)

	res, err := store.PutWithPolicy("nums", numberForest(t, 7), batch.FixedTrees(5))
	require.NoError(t, err)
	assert.Equal(t, 2, res.BatchCount)
	assert.Equal(t, 2, res.Deleted)

	out, err := store.Get("nums")
	require.NoError(t, err)
	assert.Equal(t, 7, out.TreeCount())
}

func TestGenerationMonotonic(t *testing.T) {
	store := newTestStore(t)

	for i := 1; i <= 4; i++ {
		res, err := store.Put("nums", numberForest(t, i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), res.Generation)

		st, err := store.Stat("nums")
		require.NoError(t, err)
		assert.Equal(t, uint64(i), st.Generation)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put("nums", numberForest(t, 5))
	require.NoError(t, err)

	ds, err := store.GetBatched("nums")
	require.NoError(t, err)
	defer ds.Close()

	_, err = store.Put("nums", numberForest(t, 9))
	require.NoError(t, err)

	// The open handle keeps reading its generation.
	assert.Equal(t, uint64(1), ds.Generation())
	out, err := ds.Materialize()
	require.NoError(t, err)
	assert.Equal(t, 5, out.TreeCount())

	fresh, err := store.Get("nums")
	require.NoError(t, err)
	assert.Equal(t, 9, fresh.TreeCount())
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put("nums", numberForest(t, 3))
	require.NoError(t, err)
	require.NoError(t, store.Delete("nums"))

	_, err = store.Get("nums")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete("nums")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatasetsAndStat(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"b", "a", "c"} {
		_, err := store.Put(name, numberForest(t, 2))
		require.NoError(t, err)
	}

	names, err := store.Datasets()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names, "names come back in key order")

	st, err := store.Stat("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.TreeCount)

	_, err = store.Stat("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutEmptyForest(t *testing.T) {
	store := newTestStore(t)

	// Zero trees means zero batches, and the dataset still round-trips.
	res, err := store.Put("empty", forest.New())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Generation)
	assert.Zero(t, res.BatchCount)
	assert.Zero(t, res.Written)

	out, err := store.Get("empty")
	require.NoError(t, err)
	assert.Zero(t, out.TreeCount())

	st, err := store.Stat("empty")
	require.NoError(t, err)
	assert.Zero(t, st.BatchCount)

	res, err = store.Put("empty", forest.New())
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	assert.Equal(t, uint64(2), res.Generation)
}

func TestPutEmptyReplacesExisting(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("nums", numberForest(t, 10), batch.FixedTrees(5))
	require.NoError(t, err)

	res, err := store.Put("nums", forest.New())
	require.NoError(t, err)
	assert.Zero(t, res.BatchCount)
	assert.Equal(t, 2, res.Deleted)

	out, err := store.Get("nums")
	require.NoError(t, err)
	assert.Zero(t, out.TreeCount())
}

func TestGetBatchedRejectsMissingBatch(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("nums", numberForest(t, 20), batch.FixedTrees(5))
	require.NoError(t, err)

	// Remove one batch key behind the store's back. Opening the
	// dataset must fail up front, not midway through iteration.
	w, err := store.engine.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.DeleteBatch([]byte("nums"), 2))
	require.NoError(t, w.Commit())

	_, err = store.GetBatched("nums")
	var missing *ErrBatchMissing
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, uint32(2), missing.Index)

	_, err = store.Get("nums")
	require.ErrorAs(t, err, &missing)
}

func TestInvalidName(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Put("", numberForest(t, 1))
	assert.Error(t, err)
	_, err = store.Put("a\x00b", numberForest(t, 1))
	assert.Error(t, err)
}

func TestWarmAndCache(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("nums", numberForest(t, 20), batch.FixedTrees(5))
	require.NoError(t, err)

	stats, err := store.Warm([]string{"nums"}, WithWarmParallelism(2))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Loaded)
	assert.Zero(t, stats.Skipped)
	assert.Positive(t, stats.Bytes)

	// Re-warming an unchanged dataset is a no-op.
	stats, err = store.Warm([]string{"nums"})
	require.NoError(t, err)
	assert.Zero(t, stats.Loaded)
	assert.Equal(t, 4, stats.Skipped)

	_, err = store.Get("nums")
	require.NoError(t, err)
	hits, _ := store.CacheStats()
	assert.GreaterOrEqual(t, hits, int64(4), "materialize reads through the warm cache")

	// A write bumps the generation, so the cache is cold again.
	_, err = store.PutWithPolicy("nums", numberForest(t, 21), batch.FixedTrees(5))
	require.NoError(t, err)
	stats, err = store.Warm([]string{"nums"})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Loaded)
}

func TestWarmMultipleDatasets(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("a", numberForest(t, 10), batch.FixedTrees(5))
	require.NoError(t, err)
	_, err = store.PutWithPolicy("b", numberForest(t, 15), batch.FixedTrees(5))
	require.NoError(t, err)

	stats, err := store.Warm([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Loaded)
	assert.Zero(t, stats.Skipped)
}

func TestWarmHeadOnly(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("nums", numberForest(t, 20), batch.FixedTrees(5))
	require.NoError(t, err)

	stats, err := store.Warm([]string{"nums"}, WithWarmHeadOnly())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded, "only the first batch is decoded")

	// A full pass then loads the remaining three.
	stats, err = store.Warm([]string{"nums"})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 1, stats.Skipped)
}

func TestWarmMaxBytes(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PutWithPolicy("nums", numberForest(t, 20), batch.FixedTrees(5))
	require.NoError(t, err)

	stats, err := store.Warm([]string{"nums"}, WithWarmMaxBytes(1))
	require.NoError(t, err)
	assert.Zero(t, stats.Loaded, "budget below the first payload loads nothing")
}

func TestQueryFilter(t *testing.T) {
	store := newTestStore(t)

	f := forest.New()
	for i := 0; i < 6; i++ {
		f.Append(forest.Object(forest.F("x", forest.Int(int64(i)))))
	}
	_, err := store.PutWithPolicy("nums", f, batch.FixedTrees(2))
	require.NoError(t, err)

	res, err := store.Query("nums", query.Ge(query.Path("x"), query.Lit(forest.Int(3))))
	require.NoError(t, err)
	assert.True(t, res.Vectorized)
	assert.Nil(t, res.Fallback)
	assert.Equal(t, []uint64{3, 4, 5}, res.Matches, "matches are global tree numbers")
}

func TestQueryAggregate(t *testing.T) {
	store := newTestStore(t)

	f := forest.New()
	for i := 1; i <= 5; i++ {
		f.Append(forest.Object(forest.F("x", forest.Int(int64(i)))))
	}
	_, err := store.PutWithPolicy("nums", f, batch.FixedTrees(2))
	require.NoError(t, err)

	res, err := store.Query("nums", query.Sum(query.Path("x")))
	require.NoError(t, err)
	assert.True(t, res.IsAggregate)
	assert.True(t, res.Value.Equal(forest.Float(15)))

	res, err = store.Query("nums", query.Count(query.Path("x")))
	require.NoError(t, err)
	assert.True(t, res.Value.Equal(forest.Int(5)))
}

func TestQueryFallback(t *testing.T) {
	store := newTestStore(t)

	f := forest.New()
	f.Append(forest.Object(forest.F("name", forest.String("alpha"))))
	f.Append(forest.Object(forest.F("name", forest.String("beta"))))
	_, err := store.Put("names", f)
	require.NoError(t, err)

	res, err := store.Query("names",
		query.RegexMatch(query.Path("name"), query.Lit(forest.String("^a"))))
	require.NoError(t, err)
	assert.False(t, res.Vectorized)
	require.NotNil(t, res.Fallback)
	assert.Equal(t, "regular expression match", res.Fallback.Reason)
	assert.Equal(t, []uint64{0}, res.Matches)
}

func TestQuerySkipsTreesMissingField(t *testing.T) {
	store := newTestStore(t)

	f := forest.New()
	f.Append(forest.Object(forest.F("a", forest.Object(forest.F("b", forest.Int(5))))))
	f.Append(forest.Object(forest.F("a", forest.Object(forest.F("c", forest.Int(5))))))
	f.Append(forest.Object(forest.F("a", forest.Object(forest.F("b", forest.Int(5))))))
	_, err := store.Put("nested", f)
	require.NoError(t, err)

	res, err := store.Query("nested",
		query.Eq(query.Path("a", "b"), query.Lit(forest.Int(5))))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2}, res.Matches)
}

func TestReadOnlyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Put("nums", numberForest(t, 3))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ro, err := Open(path, WithReadOnly())
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Put("nums", numberForest(t, 4))
	assert.ErrorIs(t, err, ErrReadOnly)
	err = ro.Delete("nums")
	assert.ErrorIs(t, err, ErrReadOnly)

	out, err := ro.Get("nums")
	require.NoError(t, err)
	assert.Equal(t, 3, out.TreeCount())
}

func TestBackupRestore(t *testing.T) {
	store := newTestStore(t)

	f := numberForest(t, 10)
	_, err := store.Put("nums", f)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := store.Backup(&buf)
	require.NoError(t, err)
	assert.Positive(t, n)

	restored := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, Restore(bytes.NewReader(buf.Bytes()), restored))

	// Restore refuses to overwrite.
	assert.Error(t, Restore(bytes.NewReader(buf.Bytes()), restored))

	re, err := Open(restored)
	require.NoError(t, err)
	defer re.Close()

	out, err := re.Get("nums")
	require.NoError(t, err)
	require.Equal(t, 10, out.TreeCount())
	for i := 0; i < 10; i++ {
		assert.True(t, f.Value(i).Equal(out.Value(i)))
	}
}

func TestClosedStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "arbor.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Put("x", numberForest(t, 1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.Get("x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.Datasets()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetricsCollector(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	store := newTestStore(t, WithMetricsCollector(metrics))

	_, err := store.Put("nums", numberForest(t, 3))
	require.NoError(t, err)
	_, err = store.Get("nums")
	require.NoError(t, err)
	_, err = store.Query("nums", query.Exists(query.Path("id")))
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.PutCount)
	assert.Positive(t, stats.GetCount)
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryVectorized)
}
