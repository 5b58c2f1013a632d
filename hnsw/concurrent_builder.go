package hnsw

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hnswgraph/scorer"
)

// DefaultBatchSize is the number of ordinals a worker claims at a time.
const DefaultBatchSize = 2048

// WorkerLimiter bounds how many construction workers run at once.
type WorkerLimiter interface {
	AcquireWorker(ctx context.Context) error
	ReleaseWorker()
}

// ConcurrentOptions configures a ConcurrentBuilder.
type ConcurrentOptions struct {
	BuilderOptions
	// Workers is the number of construction goroutines.
	Workers int
	// BatchSize is the number of ordinals claimed per cursor advance.
	BatchSize int
	// Limiter optionally bounds running workers across builders.
	Limiter WorkerLimiter
}

// DefaultConcurrentOptions contains the default concurrent construction options.
var DefaultConcurrentOptions = ConcurrentOptions{
	BuilderOptions: DefaultBuilderOptions,
	Workers:        1,
	BatchSize:      DefaultBatchSize,
}

// ConcurrentBuilder builds a fixed-size graph with several workers.
//
// Workers share one atomic cursor and claim contiguous ordinal batches from
// it. Every neighbor list mutation and every neighbor list read during
// construction happens under the graph's striped Lock. Insertion order is
// not deterministic with more than one worker.
type ConcurrentBuilder struct {
	workers   []*Builder
	graph     *OnHeapGraph
	cursor    atomic.Int64
	batchSize int
	limiter   WorkerLimiter
	frozen    bool
}

// NewConcurrentBuilder creates a builder over g, which must have a fixed
// size. initialized marks nodes already present in g; it may be nil.
func NewConcurrentBuilder(supplier scorer.Supplier, g *OnHeapGraph, initialized *bitset.BitSet, optFns ...func(o *ConcurrentOptions)) (*ConcurrentBuilder, error) {
	opts := DefaultConcurrentOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if !g.noGrowth {
		return nil, fmt.Errorf("%w: concurrent construction requires a fixed-size graph", ErrInvalidArgument)
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidArgument, opts.Workers)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	opts.M = g.MaxConn()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	lock := NewLock()
	b := &ConcurrentBuilder{
		workers:   make([]*Builder, opts.Workers),
		graph:     g,
		batchSize: opts.BatchSize,
		limiter:   opts.Limiter,
	}
	for i := range b.workers {
		sup, err := supplier.Copy()
		if err != nil {
			return nil, err
		}
		wopts := opts.BuilderOptions
		wopts.Seed += int64(i)
		w, err := newBuilder(sup, wopts, g, lock, initialized)
		if err != nil {
			return nil, err
		}
		b.workers[i] = w
	}
	return b, nil
}

// SetInfoStream sets the diagnostic stream of every worker.
func (b *ConcurrentBuilder) SetInfoStream(s InfoStream) {
	for _, w := range b.workers {
		w.SetInfoStream(s)
	}
}

// Graph returns the graph under construction.
func (b *ConcurrentBuilder) Graph() *OnHeapGraph { return b.graph }

// AddGraphNode is not supported; nodes are only added through Build.
func (b *ConcurrentBuilder) AddGraphNode(int) error { return ErrUnsupported }

// Build runs all workers over [0, maxOrd) and completes the graph. The first
// worker error cancels the others and is returned.
func (b *ConcurrentBuilder) Build(ctx context.Context, maxOrd int) (*OnHeapGraph, error) {
	if b.frozen {
		return nil, ErrFrozen
	}
	if info := b.workers[0].infoStream; info.Enabled(InfoComponent) {
		info.Message(InfoComponent, fmt.Sprintf("build graph from %d vectors, with %d workers", maxOrd, len(b.workers)))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range b.workers {
		g.Go(func() error {
			if b.limiter != nil {
				if err := b.limiter.AcquireWorker(gctx); err != nil {
					return err
				}
				defer b.limiter.ReleaseWorker()
			}
			return b.run(gctx, w, maxOrd)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b.CompletedGraph()
}

func (b *ConcurrentBuilder) run(ctx context.Context, w *Builder, maxOrd int) error {
	for {
		start := int(b.cursor.Add(int64(b.batchSize))) - b.batchSize
		if start >= maxOrd {
			return nil
		}
		if err := w.addVectors(ctx, start, min(maxOrd, start+b.batchSize)); err != nil {
			return err
		}
	}
}

// CompletedGraph repairs connectivity once and freezes the builder.
func (b *ConcurrentBuilder) CompletedGraph() (*OnHeapGraph, error) {
	if !b.frozen {
		if err := b.workers[0].finish(); err != nil {
			return nil, err
		}
		b.frozen = true
	}
	return b.graph, nil
}
