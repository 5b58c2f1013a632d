package hnsw

import (
	"fmt"

	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/knn"
	"github.com/hupe1980/hnswgraph/scorer"
)

// SeededSearcher skips entry point discovery and starts level 0 search from
// caller supplied ordinals.
type SeededSearcher struct {
	delegate GraphSearcher
	seeds    []int
}

// NewSeededSearcher wraps delegate. Seeds must be non-empty ordinals in [0, graphSize).
func NewSeededSearcher(delegate GraphSearcher, seeds []int, graphSize int) (*SeededSearcher, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: the number of entry points must be > 0", ErrInvalidArgument)
	}
	for _, s := range seeds {
		if s < 0 || s >= graphSize {
			return nil, fmt.Errorf("%w: entry point %d outside graph of size %d", ErrInvalidArgument, s, graphSize)
		}
	}
	return &SeededSearcher{delegate: delegate, seeds: seeds}, nil
}

func (s *SeededSearcher) Search(results knn.Collector, sc scorer.RandomVectorScorer, g Graph, acceptOrds filter.Bits) error {
	return s.delegate.SearchLevel(results, sc, 0, s.seeds, g, acceptOrds)
}

func (s *SeededSearcher) SearchLevel(results knn.Collector, sc scorer.RandomVectorScorer, level int, eps []int, g Graph, acceptOrds filter.Bits) error {
	return s.delegate.SearchLevel(results, sc, level, eps, g, acceptOrds)
}
