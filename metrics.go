package arbordb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    putCounter     prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordPut(written, deleted int, duration time.Duration, err error) {
//	    p.putCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordPut is called after each dataset write. written and deleted
	// count touched batches; duration is the total time taken.
	RecordPut(written, deleted int, duration time.Duration, err error)

	// RecordGet is called after each dataset open or materialization.
	RecordGet(duration time.Duration, err error)

	// RecordDelete is called after each dataset delete.
	RecordDelete(duration time.Duration, err error)

	// RecordQuery is called after each query evaluation. vectorized
	// reports whether the columnar engine ran.
	RecordQuery(vectorized bool, duration time.Duration, err error)

	// RecordCache is called after each warm pass with the number of
	// batches decoded into the cache.
	RecordCache(loaded int, bytes int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordGet(time.Duration, error)            {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)         {}
func (NoopMetricsCollector) RecordQuery(bool, time.Duration, error)    {}
func (NoopMetricsCollector) RecordCache(int, int64)                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PutCount         atomic.Int64
	PutErrors        atomic.Int64
	PutTotalNanos    atomic.Int64
	BatchesWritten   atomic.Int64
	BatchesDeleted   atomic.Int64
	GetCount         atomic.Int64
	GetErrors        atomic.Int64
	GetTotalNanos    atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryVectorized  atomic.Int64
	QueryTotalNanos  atomic.Int64
	CacheLoads       atomic.Int64
	CacheLoadedBytes atomic.Int64
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(written, deleted int, duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())
	b.BatchesWritten.Add(int64(written))
	b.BatchesDeleted.Add(int64(deleted))
	if err != nil {
		b.PutErrors.Add(1)
	}
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(duration time.Duration, err error) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.GetErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(vectorized bool, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if vectorized {
		b.QueryVectorized.Add(1)
	}
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordCache implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCache(loaded int, bytes int64) {
	b.CacheLoads.Add(int64(loaded))
	b.CacheLoadedBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PutCount:         b.PutCount.Load(),
		PutErrors:        b.PutErrors.Load(),
		PutAvgNanos:      avgNanos(b.PutTotalNanos.Load(), b.PutCount.Load()),
		BatchesWritten:   b.BatchesWritten.Load(),
		BatchesDeleted:   b.BatchesDeleted.Load(),
		GetCount:         b.GetCount.Load(),
		GetErrors:        b.GetErrors.Load(),
		GetAvgNanos:      avgNanos(b.GetTotalNanos.Load(), b.GetCount.Load()),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryVectorized:  b.QueryVectorized.Load(),
		QueryAvgNanos:    avgNanos(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		CacheLoads:       b.CacheLoads.Load(),
		CacheLoadedBytes: b.CacheLoadedBytes.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount         int64
	PutErrors        int64
	PutAvgNanos      int64
	BatchesWritten   int64
	BatchesDeleted   int64
	GetCount         int64
	GetErrors        int64
	GetAvgNanos      int64
	DeleteCount      int64
	DeleteErrors     int64
	QueryCount       int64
	QueryErrors      int64
	QueryVectorized  int64
	QueryAvgNanos    int64
	CacheLoads       int64
	CacheLoadedBytes int64
}
