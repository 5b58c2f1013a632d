package hnsw

import (
	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/internal/pool"
	"github.com/hupe1980/hnswgraph/internal/queue"
	"github.com/hupe1980/hnswgraph/internal/visited"
	"github.com/hupe1980/hnswgraph/knn"
	"github.com/hupe1980/hnswgraph/scorer"
)

// unknownEntry is returned by entry point discovery when the visit budget ran out.
const unknownEntry = -1

// searchers recycles plain searchers between top level searches.
var searchers = pool.New(NewSearcher, func(s *Searcher) {
	s.nbrs, s.buf = nil, s.buf[:0]
})

// GraphSearcher runs a kNN search over a Graph.
type GraphSearcher interface {
	// Search finds an entry point and searches level 0 from it.
	Search(results knn.Collector, sc scorer.RandomVectorScorer, g Graph, acceptOrds filter.Bits) error
	// SearchLevel runs a beam search on one level seeded with eps.
	SearchLevel(results knn.Collector, sc scorer.RandomVectorScorer, level int, eps []int, g Graph, acceptOrds filter.Bits) error
}

// Search runs a kNN search with the strategy of results.
//
// acceptDocs filters at the document level and is translated through the
// scorer. Collected hits carry document ids. The filtered traversal is used
// when acceptDocs reports a cardinality below the strategy threshold.
func Search(sc scorer.RandomVectorScorer, results knn.Collector, g Graph, acceptDocs filter.Bits) error {
	if g.EntryNode() == -1 || g.Size() == 0 {
		return nil
	}
	filtered := 0
	if acceptDocs != nil {
		c, ok := filter.Cardinality(acceptDocs)
		if ok && c == 0 {
			return nil
		}
		if ok {
			filtered = c
		}
	}
	collector := knn.NewOrdinalTranslatedCollector(results, sc.OrdToDoc)
	return SearchOrds(sc, collector, g, sc.AcceptOrds(acceptDocs), filtered)
}

// SearchOrds is Search over ordinals. filteredCount is the number of ordinals
// acceptOrds matches, or 0 when unknown.
func SearchOrds(sc scorer.RandomVectorScorer, results knn.Collector, g Graph, acceptOrds filter.Bits, filteredCount int) error {
	strategy := knn.DefaultHNSWStrategy()
	var seeds []int
	switch st := results.SearchStrategy().(type) {
	case knn.HNSWStrategy:
		strategy = st
	case knn.SeededStrategy:
		seeds = st.Seeds
		if inner, ok := st.Inner.(knn.HNSWStrategy); ok {
			strategy = inner
		}
	}

	var inner GraphSearcher
	size := g.Size()
	if acceptOrds != nil && filteredCount > 0 && filteredCount < size &&
		strategy.UseFilteredSearch(float64(filteredCount)/float64(size)) {
		inner = NewFilteredSearcher(results.K(), g, filteredCount, acceptOrds)
	} else {
		s := searchers.Get()
		defer searchers.Put(s)
		inner = s
	}

	if len(seeds) > 0 {
		seeded, err := NewSeededSearcher(inner, seeds, size)
		if err != nil {
			return err
		}
		return seeded.Search(results, sc, g, acceptOrds)
	}
	return inner.Search(results, sc, g, acceptOrds)
}

// Searcher is the plain HNSW searcher. It keeps scratch state between calls
// and must not be shared between goroutines.
//
// On an OnHeapGraph the searcher reads adjacency directly instead of using the
// graph cursor, so independent searchers may run concurrently over a frozen
// graph. A merge searcher additionally copies each adjacency list under the
// graph's striped Lock and is safe while the graph is being built.
type Searcher struct {
	candidates *queue.NeighborQueue
	visited    *visited.Set
	lock       *Lock

	direct bool
	nbrs   []int
	buf    []int
	upto   int
}

// NewSearcher creates a searcher for immutable graphs.
func NewSearcher() *Searcher {
	return &Searcher{
		candidates: queue.New(16, true),
		visited:    visited.New(0),
	}
}

// NewMergeSearcher creates a searcher for graphs mutated under lock.
func NewMergeSearcher(lock *Lock) *Searcher {
	s := NewSearcher()
	s.lock = lock
	return s
}

func (s *Searcher) Search(results knn.Collector, sc scorer.RandomVectorScorer, g Graph, acceptOrds filter.Bits) error {
	ep, err := s.FindBestEntryPoint(sc, g, results)
	if err != nil {
		return err
	}
	if ep == unknownEntry {
		return nil
	}
	return s.SearchLevel(results, sc, 0, []int{ep}, g, acceptOrds)
}

// FindBestEntryPoint descends greedily from the entry node to level 1 and
// returns the best node found, or -1 if the graph is empty or the visit
// budget of collector ran out.
func (s *Searcher) FindBestEntryPoint(sc scorer.RandomVectorScorer, g Graph, collector knn.Collector) (int, error) {
	ep := g.EntryNode()
	if ep == -1 || g.NumLevels() == 1 {
		return ep, nil
	}
	s.prepare(graphSize(g))
	best, err := sc.Score(ep)
	if err != nil {
		return 0, err
	}
	collector.IncVisitedCount(1)
	for level := g.NumLevels() - 1; level >= 1; level-- {
		s.visited.Visit(ep)
		for foundBetter := true; foundBetter; {
			foundBetter = false
			s.seek(g, level, ep)
			for friend := s.nextNeighbor(g); friend != NoMoreNeighbors; friend = s.nextNeighbor(g) {
				if s.visited.GetAndSet(friend) {
					continue
				}
				if collector.EarlyTerminated() {
					return unknownEntry, nil
				}
				score, err := sc.Score(friend)
				if err != nil {
					return 0, err
				}
				collector.IncVisitedCount(1)
				if score > best {
					best = score
					ep = friend
					foundBetter = true
				}
			}
		}
	}
	if collector.EarlyTerminated() {
		return unknownEntry, nil
	}
	return ep, nil
}

func (s *Searcher) SearchLevel(results knn.Collector, sc scorer.RandomVectorScorer, level int, eps []int, g Graph, acceptOrds filter.Bits) error {
	s.prepare(graphSize(g))
	if _, err := s.seedCandidates(results, sc, eps, acceptOrds); err != nil {
		return err
	}

	// ties with the worst collected score stay competitive; the collector
	// prefers the smaller node id among them
	minAccepted := results.MinCompetitiveSimilarity()
	for s.candidates.Size() > 0 && !results.EarlyTerminated() {
		if s.candidates.TopScore() < minAccepted {
			break
		}
		s.seek(g, level, s.candidates.Pop())
		for friend := s.nextNeighbor(g); friend != NoMoreNeighbors; friend = s.nextNeighbor(g) {
			if s.visited.GetAndSet(friend) {
				continue
			}
			if results.EarlyTerminated() {
				break
			}
			score, err := sc.Score(friend)
			if err != nil {
				return err
			}
			results.IncVisitedCount(1)
			if score < minAccepted {
				continue
			}
			s.candidates.Add(friend, score)
			if (acceptOrds == nil || acceptOrds.Get(friend)) && results.Collect(friend, score) {
				minAccepted = results.MinCompetitiveSimilarity()
			}
		}
	}
	return nil
}

// seedCandidates scores the entry points and returns how many of them were
// offered to results.
func (s *Searcher) seedCandidates(results knn.Collector, sc scorer.RandomVectorScorer, eps []int, acceptOrds filter.Bits) (int, error) {
	collected := 0
	for _, ep := range eps {
		if s.visited.GetAndSet(ep) {
			continue
		}
		if results.EarlyTerminated() {
			break
		}
		score, err := sc.Score(ep)
		if err != nil {
			return collected, err
		}
		results.IncVisitedCount(1)
		s.candidates.Add(ep, score)
		if acceptOrds == nil || acceptOrds.Get(ep) {
			results.Collect(ep, score)
			collected++
		}
	}
	return collected, nil
}

func (s *Searcher) prepare(size int) {
	s.candidates.Clear()
	s.visited.Reset()
	s.visited.EnsureCapacity(size)
}

func (s *Searcher) seek(g Graph, level, node int) {
	oh, ok := g.(*OnHeapGraph)
	if !ok {
		g.Seek(level, node)
		s.direct = false
		return
	}
	arr := oh.Neighbors(level, node)
	if s.lock != nil {
		lk := s.lock.Read(level, node)
		s.buf = append(s.buf[:0], arr.Nodes()...)
		lk.Unlock()
		s.nbrs = s.buf
	} else {
		s.nbrs = arr.Nodes()
	}
	s.upto = -1
	s.direct = true
}

func (s *Searcher) nextNeighbor(g Graph) int {
	if !s.direct {
		return g.NextNeighbor()
	}
	s.upto++
	if s.upto < len(s.nbrs) {
		return s.nbrs[s.upto]
	}
	return NoMoreNeighbors
}

func (s *Searcher) neighborCount(g Graph) int {
	if !s.direct {
		return g.NeighborCount()
	}
	return len(s.nbrs)
}

// graphSize bounds node ids, which may exceed Size for graphs with holes.
func graphSize(g Graph) int {
	return g.MaxNodeID() + 1
}
