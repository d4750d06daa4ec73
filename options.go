package arbordb

import (
	"log/slog"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/engine"
)

// DefaultCacheBytes is the warm-cache capacity used when none is
// configured.
const DefaultCacheBytes int64 = 64 << 20

type options struct {
	durability       engine.DurabilityMode
	readOnly         bool
	cacheBytes       int64
	policy           batch.Policy
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Open behavior.
type Option func(*options)

// WithDurability selects how eagerly commits reach stable storage.
// The default is DurabilityFull: every commit fsyncs before returning.
func WithDurability(mode engine.DurabilityMode) Option {
	return func(o *options) {
		o.durability = mode
	}
}

// WithReadOnly opens the store for reading only. Put and Delete fail
// with ErrReadOnly; the store file must already exist.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithCacheSize sets the warm-cache capacity in bytes. Zero disables
// caching; negative means DefaultCacheBytes.
func WithCacheSize(bytes int64) Option {
	return func(o *options) {
		o.cacheBytes = bytes
	}
}

// WithBatchPolicy sets the default batch sizing policy for Put. A call
// to PutWithPolicy overrides it per write.
func WithBatchPolicy(p batch.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &arbordb.BasicMetricsCollector{}
//	store, _ := arbordb.Open(path, arbordb.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
//	fmt.Printf("Puts: %d, Avg latency: %dns\n", stats.PutCount, stats.PutAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := arbordb.NewJSONLogger(slog.LevelInfo)
//	store, _ := arbordb.Open(path, arbordb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		cacheBytes:       -1,
		policy:           batch.DefaultPolicy(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.cacheBytes < 0 {
		o.cacheBytes = DefaultCacheBytes
	}
	return o
}
