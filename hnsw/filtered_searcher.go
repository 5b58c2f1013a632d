package hnsw

import (
	"math"

	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/internal/visited"
	"github.com/hupe1980/hnswgraph/knn"
	"github.com/hupe1980/hnswgraph/scorer"
)

// expandedExplorationLambda is the share of filtered-out neighbors above
// which the second hop is explored.
const expandedExplorationLambda = 0.10

// FilteredSearcher searches level 0 under a restrictive filter.
//
// Plain beam search starves when most neighbors are rejected by the filter.
// Following ACORN, only accepted nodes are scored and queued as candidates;
// when too few of a node's neighbors are accepted, the neighbors of rejected
// neighbors are scanned as well. The exploration multiplier grows with
// the inverse of the filter ratio and is capped at half the graph degree.
//
// Rejected nodes count as visited only once they are expanded. The ones seen
// but not expanded are kept as stepping stones and walked in discovery order
// when the candidates run out before k accepted nodes were collected, so the
// search returns k results whenever k accepted nodes are reachable.
type FilteredSearcher struct {
	base          *Searcher
	acceptOrds    filter.Bits
	maxMultiplier int
	toScore       intQueue
	toExplore     intQueue

	stones    []int
	stoneHead int
	stoned    *visited.Set
}

// NewFilteredSearcher creates a searcher for acceptOrds matching filterSize of
// the graph's nodes.
func NewFilteredSearcher(k int, g Graph, filterSize int, acceptOrds filter.Bits) *FilteredSearcher {
	ratio := float64(filterSize) / float64(max(g.Size(), 1))
	multiplier := int(math.Round(math.Min(1/ratio, float64(g.MaxConn())/2)))
	multiplier = max(multiplier, 1)
	capacity := max(g.MaxConn(), 1) * 2 * multiplier
	return &FilteredSearcher{
		base:          NewSearcher(),
		acceptOrds:    acceptOrds,
		maxMultiplier: multiplier,
		toScore:       newIntQueue(capacity),
		toExplore:     newIntQueue(capacity),
		stoned:        visited.New(0),
	}
}

func (f *FilteredSearcher) Search(results knn.Collector, sc scorer.RandomVectorScorer, g Graph, acceptOrds filter.Bits) error {
	ep, err := f.base.FindBestEntryPoint(sc, g, results)
	if err != nil {
		return err
	}
	if ep == unknownEntry {
		return nil
	}
	return f.SearchLevel(results, sc, 0, []int{ep}, g, acceptOrds)
}

// SearchLevel runs the filtered traversal on level 0. Other levels use the
// plain beam search.
func (f *FilteredSearcher) SearchLevel(results knn.Collector, sc scorer.RandomVectorScorer, level int, eps []int, g Graph, acceptOrds filter.Bits) error {
	if acceptOrds == nil {
		acceptOrds = f.acceptOrds
	}
	if level != 0 || acceptOrds == nil {
		return f.base.SearchLevel(results, sc, level, eps, g, acceptOrds)
	}
	s := f.base
	size := graphSize(g)
	s.prepare(size)
	f.stones, f.stoneHead = f.stones[:0], 0
	f.stoned.Reset()
	f.stoned.EnsureCapacity(size)

	collected, err := s.seedCandidates(results, sc, eps, acceptOrds)
	if err != nil {
		return err
	}

	minAccepted := results.MinCompetitiveSimilarity()
	offer := func(ord int, score float32) {
		collected++
		if score < minAccepted {
			return
		}
		s.candidates.Add(ord, score)
		if results.Collect(ord, score) {
			minAccepted = results.MinCompetitiveSimilarity()
		}
	}

	for !results.EarlyTerminated() {
		var node int
		switch {
		case s.candidates.Size() > 0:
			if s.candidates.TopScore() < minAccepted {
				return nil
			}
			node = s.candidates.Pop()
		case collected < results.K():
			stone, ok := f.nextStone()
			if !ok {
				return nil
			}
			if acceptOrds.Get(stone) {
				score, err := sc.Score(stone)
				if err != nil {
					return err
				}
				results.IncVisitedCount(1)
				offer(stone, score)
				continue
			}
			node = stone
		default:
			return nil
		}

		s.seek(g, level, node)
		f.collectNeighborhood(g, level, acceptOrds)

		for ord, ok := f.toScore.poll(); ok; ord, ok = f.toScore.poll() {
			if results.EarlyTerminated() {
				break
			}
			score, err := sc.Score(ord)
			if err != nil {
				return err
			}
			results.IncVisitedCount(1)
			offer(ord, score)
		}
	}
	return nil
}

// collectNeighborhood fills toScore with accepted unvisited nodes around the
// node at the cursor, expanding through rejected neighbors when the direct
// neighborhood is mostly filtered out. Nodes that are neither scored nor
// expanded become stepping stones.
func (f *FilteredSearcher) collectNeighborhood(g Graph, level int, acceptOrds filter.Bits) {
	s := f.base
	f.toScore.clear()
	f.toExplore.clear()
	defer f.spillToExplore()

	neighborCount := s.neighborCount(g)
	for friend := s.nextNeighbor(g); friend != NoMoreNeighbors; friend = s.nextNeighbor(g) {
		f.route(friend, acceptOrds, true)
	}
	if neighborCount == 0 {
		return
	}

	filteredAmount := float64(f.toExplore.count()) / float64(neighborCount)
	maxToScore := int(float64(neighborCount) * math.Min(float64(f.maxMultiplier), 1/(1-filteredAmount)))
	maxToExplore := f.toExplore.capacity() - 1
	explored := f.toScore.count() + f.toExplore.count()
	if f.toScore.count() >= maxToScore || filteredAmount <= expandedExplorationLambda {
		return
	}
	for explored < maxToExplore && f.toScore.count() < maxToScore {
		next, ok := f.toExplore.poll()
		if !ok {
			break
		}
		if s.visited.GetAndSet(next) {
			continue
		}
		s.seek(g, level, next)
		for fof := s.nextNeighbor(g); fof != NoMoreNeighbors; fof = s.nextNeighbor(g) {
			if f.toScore.count() >= maxToScore || s.visited.Visited(fof) {
				f.stone(fof)
				continue
			}
			explored++
			f.route(fof, acceptOrds, explored < maxToExplore)
		}
	}
}

// route queues an unvisited node for scoring when accepted, or for expansion
// when rejected and explore is set. Anything else becomes a stepping stone.
func (f *FilteredSearcher) route(node int, acceptOrds filter.Bits, explore bool) {
	s := f.base
	if s.visited.Visited(node) {
		return
	}
	switch {
	case acceptOrds.Get(node) && !f.toScore.full():
		s.visited.Visit(node)
		f.toScore.add(node)
	case !acceptOrds.Get(node) && explore && !f.toExplore.full():
		f.toExplore.add(node)
	default:
		f.stone(node)
	}
}

// stone keeps node for later expansion unless it was visited or kept before.
func (f *FilteredSearcher) stone(node int) {
	if f.base.visited.Visited(node) || f.stoned.GetAndSet(node) {
		return
	}
	f.stones = append(f.stones, node)
}

func (f *FilteredSearcher) spillToExplore() {
	for n, ok := f.toExplore.poll(); ok; n, ok = f.toExplore.poll() {
		f.stone(n)
	}
}

// nextStone returns the oldest stepping stone that is still unvisited and
// marks it visited.
func (f *FilteredSearcher) nextStone() (int, bool) {
	for f.stoneHead < len(f.stones) {
		n := f.stones[f.stoneHead]
		f.stoneHead++
		if !f.base.visited.GetAndSet(n) {
			return n, true
		}
	}
	return 0, false
}

// intQueue is a bounded FIFO of node ids.
type intQueue struct {
	nodes []int
	head  int
}

func newIntQueue(capacity int) intQueue {
	return intQueue{nodes: make([]int, 0, capacity)}
}

func (q *intQueue) add(n int) {
	if len(q.nodes) < cap(q.nodes) {
		q.nodes = append(q.nodes, n)
	}
}

func (q *intQueue) poll() (int, bool) {
	if q.head >= len(q.nodes) {
		return 0, false
	}
	n := q.nodes[q.head]
	q.head++
	return n, true
}

func (q *intQueue) count() int { return len(q.nodes) - q.head }

func (q *intQueue) capacity() int { return cap(q.nodes) }

func (q *intQueue) full() bool { return len(q.nodes) == cap(q.nodes) }

func (q *intQueue) clear() {
	q.nodes = q.nodes[:0]
	q.head = 0
}
