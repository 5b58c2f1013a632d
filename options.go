package hnswgraph

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/hnsw"
)

// Options configures an Index.
type Options struct {
	// Metric is the similarity function. Defaults to Euclidean.
	Metric distance.Metric

	// M is the maximum number of connections per node above level 0.
	// Level 0 allows 2*M.
	M int

	// BeamWidth is the candidate list size used while inserting nodes.
	BeamWidth int

	// Seed seeds level assignment. Concurrent workers use Seed+i.
	Seed int64

	// Workers is the number of construction goroutines. Values <= 1 build
	// sequentially and deterministically.
	Workers int

	// BatchSize is the number of ordinals a concurrent worker claims at a time.
	BatchSize int

	// MemoryLimitBytes bounds the estimated graph footprint. 0 means unlimited.
	MemoryLimitBytes int64

	// FilteredSearchThreshold is the filter selectivity in percent below
	// which filtered graph traversal is used.
	FilteredSearchThreshold int

	// Logger receives build and search logs. Debug level also enables
	// graph construction diagnostics.
	Logger *Logger

	// MetricsCollector receives operation metrics.
	MetricsCollector MetricsCollector
}

// DefaultOptions contains the default index options.
var DefaultOptions = Options{
	Metric:                  distance.Euclidean,
	M:                       hnsw.DefaultM,
	BeamWidth:               hnsw.DefaultBeamWidth,
	Seed:                    hnsw.DefaultSeed,
	Workers:                 1,
	BatchSize:               hnsw.DefaultBatchSize,
	FilteredSearchThreshold: 60,
}

// WithMetric sets the similarity function.
func WithMetric(m distance.Metric) func(o *Options) {
	return func(o *Options) {
		o.Metric = m
	}
}

// WithWorkers sets the number of construction goroutines.
func WithWorkers(n int) func(o *Options) {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &hnswgraph.BasicMetricsCollector{}
//	ix, _ := hnswgraph.New(128, hnswgraph.WithMetricsCollector(metrics))
//	// ... use ix ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) func(o *Options) {
	return func(o *Options) {
		o.MetricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := hnswgraph.NewJSONLogger(slog.LevelInfo)
//	ix, _ := hnswgraph.New(128, hnswgraph.WithLogger(logger))
func WithLogger(logger *Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) func(o *Options) {
	return func(o *Options) {
		o.Logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []func(o *Options)) Options {
	o := DefaultOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = NoopLogger()
	}
	if o.MetricsCollector == nil {
		o.MetricsCollector = NoopMetricsCollector{}
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = hnsw.DefaultBatchSize
	}
	return o
}

func (o Options) validate() error {
	if o.M <= 0 {
		return fmt.Errorf("%w: M must be positive, got %d", hnsw.ErrInvalidArgument, o.M)
	}
	if o.BeamWidth <= 0 {
		return fmt.Errorf("%w: beam width must be positive, got %d", hnsw.ErrInvalidArgument, o.BeamWidth)
	}
	if o.MemoryLimitBytes < 0 {
		return fmt.Errorf("%w: memory limit must not be negative", hnsw.ErrInvalidArgument)
	}
	if _, err := distance.Provider(o.Metric); err != nil {
		return &ErrInvalidMetric{Metric: o.Metric, cause: err}
	}
	return nil
}

func (o Options) builderOptions(bo *hnsw.BuilderOptions) {
	bo.M = o.M
	bo.BeamWidth = o.BeamWidth
	bo.Seed = o.Seed
	bo.InfoStream = o.Logger
}
