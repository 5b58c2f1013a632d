package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/time/rate"

	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/scorer"
)

const (
	// DefaultM is the default maximum number of connections per node above level 0.
	DefaultM = 16

	// DefaultBeamWidth is the default candidate list size during construction.
	DefaultBeamWidth = 100

	// DefaultSeed seeds level assignment.
	DefaultSeed = 42

	// progressInterval is the number of inserted nodes between progress messages.
	progressInterval = 10000

	// ctxCheckInterval is the number of inserted nodes between context checks.
	ctxCheckInterval = 256
)

// BuilderOptions configures graph construction.
type BuilderOptions struct {
	// M is the connection limit above level 0; level 0 allows 2*M.
	M int
	// BeamWidth is the candidate list size used while linking a new node.
	BeamWidth int
	// Seed seeds the level assignment.
	Seed int64
	// InfoStream receives progress and repair messages. Nil disables them.
	InfoStream InfoStream
}

// DefaultBuilderOptions contains the default construction options.
var DefaultBuilderOptions = BuilderOptions{
	M:         DefaultM,
	BeamWidth: DefaultBeamWidth,
	Seed:      DefaultSeed,
}

func (o BuilderOptions) validate() error {
	if o.M <= 0 {
		return fmt.Errorf("%w: M must be positive, got %d", ErrInvalidArgument, o.M)
	}
	if o.BeamWidth <= 0 {
		return fmt.Errorf("%w: beam width must be positive, got %d", ErrInvalidArgument, o.BeamWidth)
	}
	return nil
}

// GraphBuilder is implemented by the sequential and concurrent builders.
type GraphBuilder interface {
	Build(ctx context.Context, maxOrd int) (*OnHeapGraph, error)
	AddGraphNode(node int) error
	SetInfoStream(s InfoStream)
	CompletedGraph() (*OnHeapGraph, error)
	Graph() *OnHeapGraph
}

var (
	_ GraphBuilder = (*Builder)(nil)
	_ GraphBuilder = (*ConcurrentBuilder)(nil)
)

// Builder constructs an HNSW graph one node at a time.
//
// Each node draws its top level once, is linked top-down to diverse
// neighbors and back-linked from them. After all nodes are added, Finish
// links disconnected components back to the rest of the graph.
type Builder struct {
	m         int
	beamWidth int
	ml        float64
	rng       *rand.Rand

	supplier scorer.Supplier
	scorer   scorer.UpdateableRandomVectorScorer
	graph    *OnHeapGraph
	searcher *Searcher
	lock     *Lock

	entryCandidates *BuilderCollector
	beamCandidates  *BuilderCollector

	// initialized nodes were copied from another graph and are skipped
	initialized *bitset.BitSet

	infoStream InfoStream
	progress   rate.Sometimes
	frozen     bool
}

// NewBuilder creates a builder over a growable graph.
func NewBuilder(supplier scorer.Supplier, optFns ...func(o *BuilderOptions)) (*Builder, error) {
	opts := DefaultBuilderOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return newBuilder(supplier, opts, NewOnHeapGraph(opts.M, -1), nil, nil)
}

// NewBuilderWithSize creates a builder over a fixed-size graph for maxOrd nodes.
func NewBuilderWithSize(supplier scorer.Supplier, maxOrd int, optFns ...func(o *BuilderOptions)) (*Builder, error) {
	opts := DefaultBuilderOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return newBuilder(supplier, opts, NewOnHeapGraph(opts.M, maxOrd), nil, nil)
}

func newBuilder(supplier scorer.Supplier, opts BuilderOptions, g *OnHeapGraph, lock *Lock, initialized *bitset.BitSet) (*Builder, error) {
	sc, err := supplier.Scorer()
	if err != nil {
		return nil, err
	}
	searcher := NewSearcher()
	if lock != nil {
		searcher = NewMergeSearcher(lock)
	}
	b := &Builder{
		m:               opts.M,
		beamWidth:       opts.BeamWidth,
		ml:              levelMultiplier(opts.M),
		rng:             rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed))),
		supplier:        supplier,
		scorer:          sc,
		graph:           g,
		searcher:        searcher,
		lock:            lock,
		entryCandidates: NewBuilderCollector(1),
		beamCandidates:  NewBuilderCollector(opts.BeamWidth),
		initialized:     initialized,
		infoStream:      infoStreamOrNoop(opts.InfoStream),
		progress:        rate.Sometimes{Every: progressInterval},
	}
	return b, nil
}

// levelMultiplier returns 1/ln(M), or 0 for M == 1 so every node stays on level 0.
func levelMultiplier(m int) float64 {
	if m <= 1 {
		return 0
	}
	return 1 / math.Log(float64(m))
}

// SetInfoStream sets the diagnostic stream. Nil disables messages.
func (b *Builder) SetInfoStream(s InfoStream) {
	b.infoStream = infoStreamOrNoop(s)
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *OnHeapGraph { return b.graph }

// Build adds the nodes [0, maxOrd) and completes the graph.
func (b *Builder) Build(ctx context.Context, maxOrd int) (*OnHeapGraph, error) {
	if b.frozen {
		return nil, ErrFrozen
	}
	if b.infoStream.Enabled(InfoComponent) {
		b.infoStream.Message(InfoComponent, fmt.Sprintf("build graph from %d vectors", maxOrd))
	}
	if err := b.addVectors(ctx, 0, maxOrd); err != nil {
		return nil, err
	}
	return b.CompletedGraph()
}

// AddGraphNode inserts a single node.
func (b *Builder) AddGraphNode(node int) error {
	if b.frozen {
		return ErrFrozen
	}
	return b.addGraphNode(node, b.scorer)
}

// CompletedGraph repairs connectivity once and freezes the builder.
func (b *Builder) CompletedGraph() (*OnHeapGraph, error) {
	if !b.frozen {
		if err := b.finish(); err != nil {
			return nil, err
		}
	}
	return b.graph, nil
}

func (b *Builder) addVectors(ctx context.Context, minOrd, maxOrd int) error {
	if b.frozen {
		return ErrFrozen
	}
	start := time.Now()
	last := start
	for node := minOrd; node < maxOrd; node++ {
		if (node-minOrd)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := b.addGraphNode(node, b.scorer); err != nil {
			return err
		}
		if b.infoStream.Enabled(InfoComponent) {
			b.progress.Do(func() {
				now := time.Now()
				b.infoStream.Message(InfoComponent, fmt.Sprintf("built %d in %d/%d ms",
					node, now.Sub(last).Milliseconds(), now.Sub(start).Milliseconds()))
				last = now
			})
		}
	}
	return nil
}

func (b *Builder) addGraphNode(node int, sc scorer.UpdateableRandomVectorScorer) error {
	if b.initialized != nil && b.initialized.Test(uint(node)) {
		return nil
	}
	nodeLevel := b.randomLevel()
	for level := nodeLevel; level >= 0; level-- {
		b.graph.AddNode(level, node)
	}
	if b.graph.TrySetNewEntryNode(node, nodeLevel) {
		return nil
	}

	lowestUnset := 0
	for {
		if err := sc.SetScoringOrdinal(node); err != nil {
			return err
		}
		// node and level are read together; the entry node always exists on its level
		entry := b.graph.Entry()
		curMaxLevel := entry.Level
		eps := []int{entry.Node}

		for level := curMaxLevel; level > nodeLevel; level-- {
			b.entryCandidates.Clear()
			if err := b.searcher.SearchLevel(b.entryCandidates, sc, level, eps, b.graph, nil); err != nil {
				return err
			}
			eps = []int{b.entryCandidates.PopNode()}
		}

		scratch := make([]*NeighborArray, min(nodeLevel, curMaxLevel)-lowestUnset+1)
		for i := len(scratch) - 1; i >= 0; i-- {
			level := i + lowestUnset
			b.beamCandidates.Clear()
			if err := b.searcher.SearchLevel(b.beamCandidates, sc, level, eps, b.graph, nil); err != nil {
				return err
			}
			eps = b.beamCandidates.PopUntilNearestKNodes()
			scratch[i] = NewNeighborArray(max(b.beamWidth, b.m+1), false)
			popToScratch(b.beamCandidates, scratch[i])
		}

		for i, candidates := range scratch {
			if err := b.addDiverseNeighbors(i+lowestUnset, node, candidates, sc); err != nil {
				return err
			}
		}
		lowestUnset += len(scratch)
		if lowestUnset > nodeLevel {
			return nil
		}
		if b.graph.TryPromoteNewEntryNode(node, nodeLevel, curMaxLevel) {
			return nil
		}
		if b.graph.NumLevels() == curMaxLevel+1 {
			panic(fmt.Sprintf("hnsw: cannot promote node %d at level %d as entry node, but max level %d did not change", node, nodeLevel, curMaxLevel))
		}
		// another goroutine raised the max level; link the remaining levels from the new entry
	}
}

func (b *Builder) randomLevel() int {
	if b.ml == 0 {
		return 0
	}
	u := b.rng.Float64()
	for u == 0 {
		u = b.rng.Float64()
	}
	return int(-math.Log(u) * b.ml)
}

// popToScratch drains candidates into scratch, worst first.
func popToScratch(candidates *BuilderCollector, scratch *NeighborArray) {
	scratch.Clear()
	for n := candidates.Size(); n > 0; n-- {
		score := candidates.MinimumScore()
		scratch.AddInOrder(candidates.PopNode(), score)
	}
}

func (b *Builder) addDiverseNeighbors(level, node int, candidates *NeighborArray, sc scorer.UpdateableRandomVectorScorer) error {
	neighbors := b.graph.Neighbors(level, node)
	maxConn := b.m
	if level == 0 {
		maxConn *= 2
	}
	mask, err := selectAndLinkDiverse(neighbors, candidates, maxConn, sc)
	if err != nil {
		return err
	}
	// iterate the local candidates; once back-links exist other writers may change neighbors
	nodes, scores := candidates.Nodes(), candidates.Scores()
	for i, nbr := range nodes {
		if !mask[i] {
			continue
		}
		if err := b.backLink(level, nbr, node, scores[i], sc); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) backLink(level, nbr, node int, score float32, sc scorer.UpdateableRandomVectorScorer) error {
	if b.lock != nil {
		lk := b.lock.Write(level, nbr)
		defer lk.Unlock()
	}
	return b.graph.Neighbors(level, nbr).AddAndEnsureDiversity(node, score, nbr, sc)
}

// selectAndLinkDiverse adds candidates best first to neighbors, skipping any
// candidate that is at least as similar to an already selected neighbor as
// to the new node. The new node has no incoming links yet, so neighbors is
// modified without locking.
func selectAndLinkDiverse(neighbors, candidates *NeighborArray, maxConn int, sc scorer.UpdateableRandomVectorScorer) ([]bool, error) {
	mask := make([]bool, candidates.Size())
	nodes, scores := candidates.Nodes(), candidates.Scores()
	for i := len(nodes) - 1; neighbors.Size() < maxConn && i >= 0; i-- {
		if err := sc.SetScoringOrdinal(nodes[i]); err != nil {
			return nil, err
		}
		diverse, err := diversityCheck(scores[i], neighbors, sc)
		if err != nil {
			return nil, err
		}
		if diverse {
			mask[i] = true
			neighbors.AddInOrder(nodes[i], scores[i])
		}
	}
	return mask, nil
}

func diversityCheck(score float32, neighbors *NeighborArray, sc scorer.RandomVectorScorer) (bool, error) {
	for _, n := range neighbors.Nodes() {
		s, err := sc.Score(n)
		if err != nil {
			return false, err
		}
		if s >= score {
			return false, nil
		}
	}
	return true, nil
}

func (b *Builder) finish() error {
	if b.graph.Size() > 0 {
		if _, err := b.connectComponents(); err != nil {
			return err
		}
	}
	b.frozen = true
	return nil
}

// connectComponents links every minor component on every level to the
// largest one. It reports false when some component could not be linked.
func (b *Builder) connectComponents() (bool, error) {
	start := time.Now()
	ok := true
	for level := 0; level < b.graph.NumLevels(); level++ {
		linked, err := b.connectComponentsOnLevel(level)
		if err != nil {
			return false, err
		}
		ok = ok && linked
	}
	if b.infoStream.Enabled(InfoComponent) {
		b.infoStream.Message(InfoComponent, fmt.Sprintf("connectComponents %d ms", time.Since(start).Milliseconds()))
	}
	return ok, nil
}

func (b *Builder) connectComponentsOnLevel(level int) (bool, error) {
	maxConn := b.m
	if level == 0 {
		maxConn *= 2
	}
	notFullyConnected := bitset.New(uint(graphSize(b.graph)))
	components := Components(b.graph, level, notFullyConnected, maxConn)
	if b.infoStream.Enabled(InfoComponent) {
		b.infoStream.Message(InfoComponent, fmt.Sprintf("connect %d components on level=%d", len(components), level))
	}
	if len(components) <= 1 {
		return true, nil
	}

	largest := 0
	for i, c := range components {
		if c.Size > components[largest].Size {
			largest = i
		}
	}
	c0 := components[largest]

	sc, err := b.supplier.Scorer()
	if err != nil {
		return false, err
	}
	beam := NewBuilderCollector(2)
	accept := filter.FromBitSet(notFullyConnected)
	ok := true
	for i, c := range components {
		if i == largest {
			continue
		}
		beam.Clear()
		if err := sc.SetScoringOrdinal(c.Start); err != nil {
			return false, err
		}
		// closest not-full node reachable from the main component
		if err := b.searcher.SearchLevel(beam, sc, level, []int{c0.Start}, b.graph, accept); err != nil {
			return false, err
		}
		linked := false
		for beam.Size() > 0 {
			score := beam.MinimumScore()
			c0node := beam.PopNode()
			if c0node == c.Start || !notFullyConnected.Test(uint(c0node)) {
				continue
			}
			b.link(level, c0node, c.Start, score, notFullyConnected)
			linked = true
			if b.infoStream.Enabled(InfoComponent) {
				b.infoStream.Message(InfoComponent, fmt.Sprintf("connected ok %d -> %d", c0node, c.Start))
			}
		}
		if !linked {
			if b.infoStream.Enabled(InfoComponent) {
				b.infoStream.Message(InfoComponent, "not connected; no free nodes found")
			}
			ok = false
		}
	}
	return ok, nil
}

// link adds n1 to the neighbors of n0 and, when there is room, n0 to the
// neighbors of n1. Full nodes are removed from notFullyConnected.
func (b *Builder) link(level, n0, n1 int, score float32, notFullyConnected *bitset.BitSet) {
	nbr0 := b.graph.Neighbors(level, n0)
	nbr1 := b.graph.Neighbors(level, n1)
	maxConn := nbr0.MaxSize() - 1
	if nbr0.Size() >= maxConn {
		panic(fmt.Sprintf("hnsw: node %d is full, has %d friends", n0, nbr0.Size()))
	}
	nbr0.AddOutOfOrder(n1, score)
	if nbr0.Size() == maxConn {
		notFullyConnected.Clear(uint(n0))
	}
	if nbr1.Size() < maxConn {
		nbr1.AddOutOfOrder(n0, score)
		if nbr1.Size() == maxConn {
			notFullyConnected.Clear(uint(n1))
		}
	}
}
