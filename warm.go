package arbordb

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/arbordb/cache"
	"github.com/hupe1980/arbordb/codec"
	"github.com/hupe1980/arbordb/pinned"
)

type warmOptions struct {
	maxBytes    int64
	parallelism int
	headOnly    bool
}

// WarmOption configures Warm.
type WarmOption func(*warmOptions)

// WithWarmMaxBytes caps how many encoded payload bytes one warm pass
// will decode, shared across all named datasets. Zero means no cap;
// the cache capacity still bounds what is retained.
func WithWarmMaxBytes(n int64) WarmOption {
	return func(o *warmOptions) {
		o.maxBytes = n
	}
}

// WithWarmParallelism sets the number of concurrent decoders. The
// default is GOMAXPROCS.
func WithWarmParallelism(n int) WarmOption {
	return func(o *warmOptions) {
		o.parallelism = n
	}
}

// WithWarmHeadOnly restricts the pass to each dataset's first batch,
// enough to serve the opening reads cheaply. The default decodes every
// batch.
func WithWarmHeadOnly() WarmOption {
	return func(o *warmOptions) {
		o.headOnly = true
	}
}

// WarmStats reports what a warm pass did, summed over every named
// dataset.
type WarmStats struct {
	// Loaded counts batches decoded into the cache.
	Loaded int
	// Skipped counts batches already cached for the current generation.
	Skipped int
	// Bytes is the total encoded size of the loaded batches.
	Bytes int64
}

// Warm decodes the batches of the named datasets into the cache ahead
// of reads. Batches already cached for the current generation are
// skipped, so re-warming unchanged datasets is a no-op. Each dataset's
// payloads are fetched from one snapshot and decoded concurrently; the
// pass stops at the first error or when the byte budget runs out.
func (s *Store) Warm(names []string, optFns ...WarmOption) (*WarmStats, error) {
	o := warmOptions{parallelism: runtime.GOMAXPROCS(0)}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.parallelism < 1 {
		o.parallelism = 1
	}

	total := &WarmStats{}
	for _, name := range names {
		if o.maxBytes > 0 && total.Bytes >= o.maxBytes {
			break
		}
		budget := int64(0)
		if o.maxBytes > 0 {
			budget = o.maxBytes - total.Bytes
		}

		stats, err := s.warm(name, o, budget)
		err = translateError(name, err)

		loaded, skipped, bytes := 0, 0, int64(0)
		if stats != nil {
			loaded, skipped, bytes = stats.Loaded, stats.Skipped, stats.Bytes
		}
		s.metrics.RecordCache(loaded, bytes)
		s.logger.LogWarm(context.Background(), name, loaded, skipped, bytes, err)
		if err != nil {
			return total, err
		}
		total.Loaded += loaded
		total.Skipped += skipped
		total.Bytes += bytes
	}
	return total, nil
}

func (s *Store) warm(name string, o warmOptions, budget int64) (*WarmStats, error) {
	d, err := s.getBatched(name)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	stats := &WarmStats{}
	count := d.BatchCount()
	if o.headOnly && count > 1 {
		count = 1
	}

	// Payload lookups share the handle's transaction, so they run on
	// this goroutine; only decoding fans out. The pinned handles keep
	// the snapshot's byte ranges alive until every decoder finishes.
	type job struct {
		key     cache.Key
		payload pinned.Bytes
	}
	var jobs []job
	for i := uint32(0); i < count; i++ {
		key := cache.Key{Name: d.name, Generation: d.Generation(), Batch: i}
		if s.cache.Contains(key) {
			stats.Skipped++
			continue
		}
		p, ok := d.tx.Batch([]byte(d.name), i)
		if !ok {
			return nil, &ErrBatchMissing{Name: d.name, Index: i}
		}
		if budget > 0 && stats.Bytes+int64(p.Len()) > budget {
			p.Close()
			break
		}
		stats.Bytes += int64(p.Len())
		jobs = append(jobs, job{key: key, payload: p})
	}

	g := new(errgroup.Group)
	g.SetLimit(o.parallelism)
	for _, j := range jobs {
		g.Go(func() error {
			defer j.payload.Close()
			b, err := codec.DecodeBatchOwned(j.payload.Data())
			if err != nil {
				return corruptedBatch(d.name, j.key.Batch, err)
			}
			b.Dict = d.dict
			s.cache.Set(j.key, b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.Loaded = len(jobs)
	return stats, nil
}
