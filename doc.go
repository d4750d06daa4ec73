// Package arbordb is an embedded, durable store for named collections
// of ordered tree values.
//
// A dataset is an ordered sequence of trees (JSON-like values with
// typed scalars) stored as fixed-size batches of a columnar encoding
// over a transactional key-value substrate. Writes are incremental:
// only batches whose content changed are rewritten, and every write
// commits atomically under a single generation counter. Readers work
// on immutable snapshots and can decode batches zero-copy from pinned
// buffers.
//
// # Quick Start
//
//	store, _ := arbordb.Open("./data.db")
//	defer store.Close()
//
//	f := forest.New()
//	f.Append(forest.Object(
//	    forest.F("id", forest.Int(1)),
//	    forest.F("name", forest.String("ada")),
//	))
//	store.Put("users", f)
//
//	out, _ := store.Get("users")       // materialize everything
//	ds, _ := store.GetBatched("users") // or read batch by batch
//	defer ds.Close()
//
// # Queries
//
// Filter and aggregate expressions evaluate batch by batch with a
// vectorized engine; constructs outside its supported subset fall back
// to a row-wise evaluator with identical semantics:
//
//	res, _ := store.Query("users",
//	    query.Eq(query.Path("name"), query.Lit(forest.String("ada"))))
//	fmt.Println(res.Matches)
//
// # Caching
//
// Decoded batches land in a byte-bounded LRU cache keyed by dataset
// generation, so stale entries vanish on write. Warm pre-fills it:
//
//	store.Warm([]string{"users"}, arbordb.WithWarmParallelism(4))
package arbordb
