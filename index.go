package hnswgraph

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/hnsw"
	"github.com/hupe1980/hnswgraph/internal/resource"
	"github.com/hupe1980/hnswgraph/scorer"
)

// Index is an in-memory approximate nearest neighbor index.
//
// Vectors are appended with Add and become searchable after the next Build.
// Ids are dense and assigned in insertion order. Searches run concurrently
// with each other and with Add; builds are serialized and swap the graph in
// atomically once complete.
type Index struct {
	dim  int
	opts Options

	controller *resource.Controller

	// buildMu serializes Build and MergeFrom.
	buildMu sync.Mutex

	mu       sync.RWMutex
	vectors  [][]float32
	graph    *hnsw.OnHeapGraph
	values   *scorer.FloatVectors // the vectors covered by graph
	reserved int64
	closed   bool

	// statsMu guards the graph cursor used by Stats.
	statsMu sync.Mutex
}

// New creates an empty index for vectors of dimension dim.
func New(dim int, optFns ...func(o *Options)) (*Index, error) {
	if dim <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dim}
	}

	opts := applyOptions(optFns)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &Index{
		dim:  dim,
		opts: opts,
		controller: resource.NewController(resource.Config{
			MemoryLimitBytes: opts.MemoryLimitBytes,
			MaxWorkers:       int64(opts.Workers),
		}),
	}, nil
}

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Metric returns the similarity function of the index.
func (ix *Index) Metric() distance.Metric { return ix.opts.Metric }

// Len returns the number of added vectors, built or not.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Graph returns the current graph, or nil before the first Build.
// The returned graph is frozen and must not be modified.
func (ix *Index) Graph() *hnsw.OnHeapGraph {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.graph
}

// Add appends vectors and returns their ids. The vectors are copied.
func (ix *Index) Add(vectors ...[]float32) ([]int, error) {
	for _, v := range vectors {
		if len(v) != ix.dim {
			err := &ErrDimensionMismatch{Expected: ix.dim, Actual: len(v)}
			ix.opts.MetricsCollector.RecordAdd(len(vectors), err)
			return nil, err
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil, ErrClosed
	}

	ids := make([]int, len(vectors))
	for i, v := range vectors {
		ids[i] = len(ix.vectors)
		ix.vectors = append(ix.vectors, slices.Clone(v))
	}

	ix.opts.MetricsCollector.RecordAdd(len(vectors), nil)
	return ids, nil
}

// Build constructs the graph over all added vectors. When a graph already
// exists it is reused as a warm start and only new vectors are inserted.
// A failed build leaves the previous graph in place.
func (ix *Index) Build(ctx context.Context) error {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	start := time.Now()

	ix.mu.RLock()
	if ix.closed {
		ix.mu.RUnlock()
		return ErrClosed
	}
	vectors := ix.vectors[:len(ix.vectors):len(ix.vectors)]
	prev, prevValues := ix.graph, ix.values
	ix.mu.RUnlock()

	n := len(vectors)
	if prev != nil && prev.Size() == n {
		ix.opts.Logger.WithCount(n).Debug("graph up to date")
		return nil
	}

	values, err := scorer.NewFloatVectors(ix.dim, vectors, nil)
	if err != nil {
		return translateError(err)
	}

	var segments []mergeInput
	if prev != nil && prev.Size() > 0 {
		segments = append(segments, mergeInput{
			seg:    hnsw.Segment{Vectors: prevValues, Graph: prev},
			docMap: hnsw.DocMapFunc(identityDoc),
		})
	}

	_, initialized, err := ix.construct(ctx, values, segments)
	elapsed := time.Since(start)

	ix.opts.Logger.WithCount(n).LogBuild(ctx, n, ix.opts.Workers, elapsed, err)
	ix.opts.MetricsCollector.RecordBuild(n, ix.opts.Workers, elapsed, err)
	if err != nil {
		return err
	}
	if initialized > 0 {
		ix.opts.Logger.Debug("warm started from previous graph", "initialized", initialized, "total", n)
	}

	return nil
}

type mergeInput struct {
	seg    hnsw.Segment
	docMap hnsw.DocMap
}

func identityDoc(doc int) int { return doc }

// construct builds a graph over values, warm starting from the largest
// segment graph when segments are given, and installs it. It returns the
// number of warm started nodes.
func (ix *Index) construct(ctx context.Context, values *scorer.FloatVectors, segments []mergeInput) (*hnsw.OnHeapGraph, int, error) {
	n := values.Size()

	need := estimateGraphBytes(n, ix.opts.M)
	if err := ix.controller.AcquireMemory(need); err != nil {
		return nil, 0, fmt.Errorf("%w: graph of %d nodes needs about %d bytes", ErrMemoryLimitExceeded, n, need)
	}

	g, initialized, err := ix.buildGraph(ctx, values, segments)
	if err != nil {
		ix.controller.ReleaseMemory(need)
		return nil, 0, translateError(err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		ix.controller.ReleaseMemory(need)
		return nil, 0, ErrClosed
	}

	ix.controller.ReleaseMemory(ix.reserved)
	ix.graph, ix.values, ix.reserved = g, values, need

	return g, initialized, nil
}

func (ix *Index) buildGraph(ctx context.Context, values *scorer.FloatVectors, segments []mergeInput) (*hnsw.OnHeapGraph, int, error) {
	n := values.Size()
	supplier := scorer.NewFloatSupplier(values, ix.opts.Metric)

	if len(segments) > 0 {
		return ix.mergeGraph(ctx, supplier, values, segments)
	}

	if ix.opts.Workers <= 1 {
		b, err := hnsw.NewBuilderWithSize(supplier, n, ix.opts.builderOptions)
		if err != nil {
			return nil, 0, err
		}
		g, err := b.Build(ctx, n)
		return g, 0, err
	}

	b, err := hnsw.NewConcurrentBuilder(supplier, hnsw.NewOnHeapGraph(ix.opts.M, n), nil, ix.concurrentOptions)
	if err != nil {
		return nil, 0, err
	}
	g, err := b.Build(ctx, n)
	return g, 0, err
}

func (ix *Index) mergeGraph(ctx context.Context, supplier scorer.Supplier, values *scorer.FloatVectors, segments []mergeInput) (*hnsw.OnHeapGraph, int, error) {
	n := values.Size()

	var merger interface {
		hnsw.Merger
		Initialized() int
	}
	if ix.opts.Workers <= 1 {
		m, err := hnsw.NewIncrementalMerger(supplier, ix.opts.builderOptions)
		if err != nil {
			return nil, 0, err
		}
		for _, in := range segments {
			m.AddReader(in.seg, in.docMap, nil)
		}
		merger = m
	} else {
		m, err := hnsw.NewConcurrentMerger(supplier, ix.concurrentOptions)
		if err != nil {
			return nil, 0, err
		}
		for _, in := range segments {
			m.AddReader(in.seg, in.docMap, nil)
		}
		merger = m
	}

	g, err := merger.Merge(ctx, values, ix.opts.Logger, n)
	if err != nil {
		return nil, 0, err
	}
	return g, merger.Initialized(), nil
}

func (ix *Index) concurrentOptions(o *hnsw.ConcurrentOptions) {
	ix.opts.builderOptions(&o.BuilderOptions)
	o.Workers = ix.opts.Workers
	o.BatchSize = ix.opts.BatchSize
	o.Limiter = ix.controller
}

// estimateGraphBytes estimates the footprint of a graph over n nodes. With
// level multiplier 1/ln(m) a node reaches level l with probability m^-l, so
// the expected number of slots above level 0 is n/(m-1).
func estimateGraphBytes(n, m int) int64 {
	if n == 0 {
		return 0
	}
	return hnsw.EstimateRAMBytes(n, m, n, n/max(m-1, 1))
}

// Stats describes the state of an index.
type Stats struct {
	Dimension   int
	Metric      distance.Metric
	Vectors     int
	Pending     int
	MemoryBytes int64
	Graph       hnsw.Stats
}

// Stats returns index and graph statistics.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	g := ix.graph
	st := Stats{
		Dimension:   ix.dim,
		Metric:      ix.opts.Metric,
		Vectors:     len(ix.vectors),
		MemoryBytes: ix.controller.MemoryUsage(),
	}
	ix.mu.RUnlock()

	st.Pending = st.Vectors
	if g == nil {
		return st
	}

	ix.statsMu.Lock()
	defer ix.statsMu.Unlock()

	st.Pending -= g.Size()
	st.Graph = hnsw.GraphStats(g)
	return st
}
