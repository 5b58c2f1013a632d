// Command hnswbench builds an HNSW index over generated vectors and reports
// construction time, search latency and recall against exact search.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/hnswgraph"
	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/metric"
	"github.com/hupe1980/hnswgraph/testutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "hnswbench:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("hnswbench", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		configPath  = fs.String("config", "", "YAML config file")
		vectors     = fs.Int("vectors", 0, "number of indexed vectors (overrides config)")
		queries     = fs.Int("queries", -1, "number of queries (overrides config)")
		workers     = fs.Int("workers", 0, "construction goroutines (overrides config)")
		filterRate  = fs.Float64("filter-rate", -1, "share of ids a query filter accepts (overrides config)")
		metricsAddr = fs.String("metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *vectors > 0 {
		cfg.Vectors = *vectors
	}
	if *queries >= 0 {
		cfg.Queries = *queries
	}
	if *workers > 0 {
		cfg.Index.Workers = *workers
	}
	if *filterRate >= 0 {
		cfg.Search.FilterRate = *filterRate
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	report, err := bench(ctx, cfg)
	if err != nil {
		return err
	}

	report.print(out)
	return nil
}

// Report is the outcome of a benchmark run.
type Report struct {
	Config       Config
	BuildTime    time.Duration
	WarmStart    time.Duration
	Graph        hnswgraph.Stats
	SearchAvg    time.Duration
	Recall       testutil.RecallStats
	ExactQueries int64
}

func bench(ctx context.Context, cfg Config) (*Report, error) {
	m, _ := cfg.metric()
	level, _ := cfg.logLevel()
	logger := hnswgraph.NewTextLogger(level)

	basic := &hnswgraph.BasicMetricsCollector{}
	collectors := fanout{basic}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		collectors = append(collectors, metric.NewPrometheusCollector(reg))

		stop, err := serveMetrics(cfg.MetricsAddr, reg)
		if err != nil {
			return nil, err
		}
		defer stop()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	ix, err := hnswgraph.New(cfg.Dimension, func(o *hnswgraph.Options) {
		o.Metric = m
		o.M = cfg.Index.M
		o.BeamWidth = cfg.Index.BeamWidth
		o.Seed = cfg.Seed
		o.Workers = cfg.Index.Workers
		o.BatchSize = cfg.Index.BatchSize
		o.MemoryLimitBytes = cfg.Index.MemoryLimitBytes
		o.FilteredSearchThreshold = cfg.Search.FilteredSearchThreshold
		o.Logger = logger
		o.MetricsCollector = collectors
	})
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	rng := testutil.NewRNG(cfg.Seed)
	data := generate(rng, cfg)

	report := &Report{Config: cfg}

	first := int(float64(len(data)) * cfg.WarmStartFraction)
	if first > 0 {
		if _, err := ix.Add(data[:first]...); err != nil {
			return nil, err
		}
		start := time.Now()
		if err := ix.Build(ctx); err != nil {
			return nil, err
		}
		report.BuildTime = time.Since(start)
	}

	if _, err := ix.Add(data[first:]...); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := ix.Build(ctx); err != nil {
		return nil, err
	}
	if first > 0 {
		report.WarmStart = time.Since(start)
	} else {
		report.BuildTime = time.Since(start)
	}
	report.Graph = ix.Stats()

	var accept *filter.Fixed
	if cfg.Search.FilterRate > 0 {
		accept = rng.AcceptMask(len(data), cfg.Search.FilterRate)
	}

	recalls := make([]float64, 0, cfg.Queries)
	var searchTime time.Duration
	for range cfg.Queries {
		q := generate(rng, Config{Dimension: cfg.Dimension, Vectors: 1, Distribution: cfg.Distribution})[0]

		start := time.Now()
		results, err := ix.KNNSearch(ctx, q, cfg.K, func(o *hnswgraph.SearchOptions) {
			if accept != nil {
				o.Filter = accept
			}
			o.VisitLimit = cfg.Search.VisitLimit
		})
		if err != nil {
			return nil, err
		}
		searchTime += time.Since(start)

		var truth []testutil.SearchResult
		if accept != nil {
			truth = testutil.BruteForceSearch(m, data, q, cfg.K, accept)
		} else {
			truth = testutil.BruteForceSearch(m, data, q, cfg.K, nil)
		}
		approx := make([]testutil.SearchResult, len(results))
		for i, r := range results {
			approx[i] = testutil.SearchResult{ID: r.ID, Score: r.Score}
		}
		recalls = append(recalls, testutil.ComputeRecall(truth, approx))
	}

	if cfg.Queries > 0 {
		report.SearchAvg = searchTime / time.Duration(cfg.Queries)
	}
	report.Recall = testutil.SummarizeRecall(recalls)
	report.ExactQueries = basic.GetStats().SearchExact

	return report, nil
}

func generate(rng *testutil.RNG, cfg Config) [][]float32 {
	switch cfg.Distribution {
	case "uniform":
		return rng.UniformRangeVectors(cfg.Vectors, cfg.Dimension)
	case "clustered":
		return rng.ClusteredVectors(cfg.Vectors, cfg.Dimension, max(cfg.Vectors/1000, 1), 0.1)
	default:
		return rng.UnitVectors(cfg.Vectors, cfg.Dimension)
	}
}

func (r *Report) print(w io.Writer) {
	fmt.Fprintf(w, "vectors=%d dim=%d metric=%s workers=%d m=%d beam=%d\n",
		r.Config.Vectors, r.Config.Dimension, r.Config.Metric, r.Config.Index.Workers, r.Config.Index.M, r.Config.Index.BeamWidth)
	fmt.Fprintf(w, "build: %v\n", r.BuildTime)
	if r.WarmStart > 0 {
		fmt.Fprintf(w, "warm start build: %v\n", r.WarmStart)
	}
	fmt.Fprintf(w, "graph: %s memory=%dB\n", r.Graph.Graph, r.Graph.MemoryBytes)
	for _, ls := range r.Graph.Graph.Levels {
		fmt.Fprintf(w, "  level %d: nodes=%d avg_degree=%.2f max_degree=%d\n", ls.Level, ls.Nodes, ls.AvgConnections, ls.MaxConnections)
	}
	fmt.Fprintf(w, "search: queries=%d k=%d avg=%v exact=%d\n", r.Config.Queries, r.Config.K, r.SearchAvg, r.ExactQueries)
	fmt.Fprintf(w, "recall: mean=%.4f std=%.4f min=%.4f\n", r.Recall.Mean, r.Recall.StdDev, r.Recall.Min)
}

// serveMetrics serves reg on addr until the returned stop function is called.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "hnswbench: metrics server:", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// fanout forwards metrics to several collectors.
type fanout []hnswgraph.MetricsCollector

func (f fanout) RecordAdd(count int, err error) {
	for _, c := range f {
		c.RecordAdd(count, err)
	}
}

func (f fanout) RecordBuild(nodes, workers int, d time.Duration, err error) {
	for _, c := range f {
		c.RecordBuild(nodes, workers, d, err)
	}
}

func (f fanout) RecordSearch(k int, visited int64, exact bool, d time.Duration, err error) {
	for _, c := range f {
		c.RecordSearch(k, visited, exact, d, err)
	}
}

func (f fanout) RecordMerge(initialized, total int, d time.Duration, err error) {
	for _, c := range f {
		c.RecordMerge(initialized, total, d, err)
	}
}
