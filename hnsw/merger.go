package hnsw

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/scorer"
)

// Segment is one input of a merge: its vectors and, when available, the
// graph previously built over them.
type Segment struct {
	Vectors scorer.FloatVectorValues
	Graph   Graph
}

// DocMap maps a segment document id to its id in the merged index.
type DocMap interface {
	Get(doc int) int
}

// DocMapFunc adapts a function to DocMap.
type DocMapFunc func(doc int) int

func (f DocMapFunc) Get(doc int) int { return f(doc) }

// Merger builds one graph over merged vectors after segments were offered.
type Merger interface {
	Merge(ctx context.Context, merged scorer.FloatVectorValues, infoStream InfoStream, maxOrd int) (*OnHeapGraph, error)
}

var (
	_ Merger = (*IncrementalMerger)(nil)
	_ Merger = (*ConcurrentMerger)(nil)
)

// IncrementalMerger merges segment graphs by warm starting from the largest
// eligible segment graph and inserting the remaining vectors sequentially.
type IncrementalMerger struct {
	supplier scorer.Supplier
	opts     BuilderOptions

	initSegment   *Segment
	initDocMap    DocMap
	initGraphSize int

	initialized int
}

// NewIncrementalMerger creates a merger scoring merged vectors through supplier.
func NewIncrementalMerger(supplier scorer.Supplier, optFns ...func(o *BuilderOptions)) (*IncrementalMerger, error) {
	opts := DefaultBuilderOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &IncrementalMerger{supplier: supplier, opts: opts}, nil
}

// AddReader offers a segment as initializer. Segments with deleted documents,
// without a graph, with an empty graph or with a graph built for another M are
// ignored; among the rest the one with the most vectors wins. Vectors of an
// ignored segment are inserted like any other.
func (m *IncrementalMerger) AddReader(seg Segment, docMap DocMap, liveDocs filter.Bits) *IncrementalMerger {
	if hasDeletes(liveDocs) || seg.Graph == nil || seg.Graph.Size() == 0 || seg.Vectors == nil {
		return m
	}
	if seg.Graph.MaxConn() != m.opts.M {
		return m
	}
	if n := seg.Vectors.Size(); n > m.initGraphSize {
		m.initSegment = &seg
		m.initDocMap = docMap
		m.initGraphSize = n
	}
	return m
}

// Initializer returns the chosen initializer segment, if any.
func (m *IncrementalMerger) Initializer() (Segment, bool) {
	if m.initSegment == nil {
		return Segment{}, false
	}
	return *m.initSegment, true
}

// Merge builds the graph over merged, which holds maxOrd vectors.
func (m *IncrementalMerger) Merge(ctx context.Context, merged scorer.FloatVectorValues, infoStream InfoStream, maxOrd int) (*OnHeapGraph, error) {
	b, err := m.createBuilder(merged, maxOrd)
	if err != nil {
		return nil, err
	}
	b.SetInfoStream(infoStream)
	m.initialized = countInitialized(b.initialized)
	if info := infoStreamOrNoop(infoStream); info.Enabled(InfoComponent) && b.initialized != nil {
		info.Message(InfoComponent, fmt.Sprintf("initialized %d of %d nodes from segment graph", m.initialized, maxOrd))
	}
	return b.Build(ctx, maxOrd)
}

// Initialized returns the number of nodes the last Merge copied from the
// initializer graph.
func (m *IncrementalMerger) Initialized() int { return m.initialized }

func countInitialized(initialized *bitset.BitSet) int {
	if initialized == nil {
		return 0
	}
	return int(initialized.Count())
}

func (m *IncrementalMerger) createBuilder(merged scorer.FloatVectorValues, maxOrd int) (*Builder, error) {
	if m.initSegment == nil {
		return newBuilder(m.supplier, m.opts, NewOnHeapGraph(m.opts.M, maxOrd), nil, nil)
	}
	initialized := bitset.New(uint(maxOrd))
	oldToNew := m.newOrdMapping(merged, initialized)
	return NewInitializedBuilder(m.supplier, m.initSegment.Graph, oldToNew, initialized, maxOrd, func(o *BuilderOptions) {
		*o = m.opts
	})
}

// newOrdMapping maps initializer ordinals to merged ordinals by matching
// document ids through the doc map. Unmatched ordinals map to -1. Every
// mapped merged ordinal is set in initialized.
func (m *IncrementalMerger) newOrdMapping(merged scorer.FloatVectorValues, initialized *bitset.BitSet) []int {
	newDocToOldOrd := make(map[int]int, m.initGraphSize)
	maxNewDoc := -1
	it := m.initSegment.Vectors.Iterator()
	for doc := it.NextDoc(); doc != scorer.NoMoreDocs; doc = it.NextDoc() {
		newDoc := m.initDocMap.Get(doc)
		if newDoc < 0 {
			continue
		}
		maxNewDoc = max(maxNewDoc, newDoc)
		newDocToOldOrd[newDoc] = it.Index()
	}

	oldToNew := make([]int, m.initGraphSize)
	for i := range oldToNew {
		oldToNew[i] = -1
	}
	if maxNewDoc == -1 {
		return oldToNew
	}
	mit := merged.Iterator()
	for newDoc := mit.NextDoc(); newDoc <= maxNewDoc; newDoc = mit.NextDoc() {
		if oldOrd, ok := newDocToOldOrd[newDoc]; ok {
			newOrd := mit.Index()
			initialized.Set(uint(newOrd))
			oldToNew[oldOrd] = newOrd
		}
	}
	return oldToNew
}

func hasDeletes(liveDocs filter.Bits) bool {
	if liveDocs == nil {
		return false
	}
	for i := 0; i < liveDocs.Len(); i++ {
		if !liveDocs.Get(i) {
			return true
		}
	}
	return false
}

// ConcurrentMerger is an IncrementalMerger that inserts the remaining
// vectors with a ConcurrentBuilder.
type ConcurrentMerger struct {
	inc  *IncrementalMerger
	opts ConcurrentOptions
}

// NewConcurrentMerger creates a merger that builds with opts.Workers goroutines.
func NewConcurrentMerger(supplier scorer.Supplier, optFns ...func(o *ConcurrentOptions)) (*ConcurrentMerger, error) {
	opts := DefaultConcurrentOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	inc, err := NewIncrementalMerger(supplier, func(o *BuilderOptions) { *o = opts.BuilderOptions })
	if err != nil {
		return nil, err
	}
	return &ConcurrentMerger{inc: inc, opts: opts}, nil
}

// AddReader offers a segment as initializer, see IncrementalMerger.AddReader.
func (m *ConcurrentMerger) AddReader(seg Segment, docMap DocMap, liveDocs filter.Bits) *ConcurrentMerger {
	m.inc.AddReader(seg, docMap, liveDocs)
	return m
}

// Merge builds the graph over merged, which holds maxOrd vectors.
func (m *ConcurrentMerger) Merge(ctx context.Context, merged scorer.FloatVectorValues, infoStream InfoStream, maxOrd int) (*OnHeapGraph, error) {
	var (
		g           *OnHeapGraph
		initialized *bitset.BitSet
	)
	if m.inc.initSegment == nil {
		g = NewOnHeapGraph(m.opts.M, maxOrd)
	} else {
		initialized = bitset.New(uint(maxOrd))
		oldToNew := m.inc.newOrdMapping(merged, initialized)
		g = InitGraph(m.inc.initSegment.Graph, oldToNew, maxOrd)
	}
	b, err := NewConcurrentBuilder(m.inc.supplier, g, initialized, func(o *ConcurrentOptions) { *o = m.opts })
	if err != nil {
		return nil, err
	}
	b.SetInfoStream(infoStream)
	m.inc.initialized = countInitialized(initialized)
	if info := infoStreamOrNoop(infoStream); info.Enabled(InfoComponent) && initialized != nil {
		info.Message(InfoComponent, fmt.Sprintf("initialized %d of %d nodes from segment graph", m.inc.initialized, maxOrd))
	}
	return b.Build(ctx, maxOrd)
}

// Initialized returns the number of nodes the last Merge copied from the
// initializer graph.
func (m *ConcurrentMerger) Initialized() int { return m.inc.initialized }
