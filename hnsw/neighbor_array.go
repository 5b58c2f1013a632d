package hnsw

import (
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/hnswgraph/scorer"
)

// NeighborArray holds the neighbors of one (node, level) slot as parallel
// node and score arrays.
//
// The first sortedNodeSize entries are sorted by score. Entries appended with
// AddOutOfOrder form an unchecked suffix that is sorted lazily, either by Sort
// or when AddAndEnsureDiversity has to evict an entry. A NaN score marks an
// entry whose score has not been computed yet.
//
// The array has a fixed capacity of maxConn+1 so that it can momentarily hold
// one entry over the connection limit before the diversity check evicts one.
type NeighborArray struct {
	size            int
	sortedNodeSize  int
	scoresDescOrder bool
	nodes           []int
	scores          []float32
}

// NewNeighborArray creates an empty array with room for maxSize entries.
func NewNeighborArray(maxSize int, descOrder bool) *NeighborArray {
	return &NeighborArray{
		scoresDescOrder: descOrder,
		nodes:           make([]int, maxSize),
		scores:          make([]float32, maxSize),
	}
}

// AddInOrder appends a neighbor whose score does not rank above the last
// one. It panics if unchecked entries exist, the array is full, or the order
// is violated.
func (a *NeighborArray) AddInOrder(node int, score float32) {
	if a.size != a.sortedNodeSize {
		panic("hnsw: AddInOrder called after AddOutOfOrder")
	}
	if a.size == len(a.nodes) {
		panic("hnsw: neighbor array is full")
	}
	if a.size > 0 {
		prev := a.scores[a.size-1]
		if (a.scoresDescOrder && prev < score) || (!a.scoresDescOrder && prev > score) {
			panic(fmt.Sprintf("hnsw: neighbors added in incorrect order: %v after %v", score, a.scores[:a.size]))
		}
	}
	a.nodes[a.size] = node
	a.scores[a.size] = score
	a.size++
	a.sortedNodeSize++
}

// AddOutOfOrder appends a neighbor to the unchecked suffix. It panics if the
// array is full.
func (a *NeighborArray) AddOutOfOrder(node int, score float32) {
	if a.size == len(a.nodes) {
		panic("hnsw: neighbor array is full")
	}
	a.nodes[a.size] = node
	a.scores[a.size] = score
	a.size++
}

// AddAndEnsureDiversity appends a neighbor of anchor. When the array reaches
// capacity, the least diverse entry is evicted: one that is at least as
// similar to a better ranked neighbor as it is to anchor, preferring
// unchecked entries. The scorer is rebound while evaluating.
func (a *NeighborArray) AddAndEnsureDiversity(node int, score float32, anchor int, sc scorer.UpdateableRandomVectorScorer) error {
	a.AddOutOfOrder(node, score)
	if a.size < len(a.nodes) {
		return nil
	}
	if err := sc.SetScoringOrdinal(anchor); err != nil {
		return err
	}
	worst, err := a.findWorstNonDiverse(sc)
	if err != nil {
		return err
	}
	a.RemoveIndex(worst)
	return nil
}

// Sort moves unchecked entries into the sorted prefix and returns their new
// positions in ascending order, or nil if nothing was unchecked. NaN scores
// are computed with sc, which must be bound to the owning node.
func (a *NeighborArray) Sort(sc scorer.RandomVectorScorer) ([]int, error) {
	if a.size == a.sortedNodeSize {
		return nil, nil
	}
	unchecked := make([]int, a.size-a.sortedNodeSize)
	for count := 0; a.sortedNodeSize != a.size; count++ {
		idx, err := a.insertSorted(sc)
		if err != nil {
			return nil, err
		}
		unchecked[count] = idx
		for i := 0; i < count; i++ {
			if unchecked[i] >= idx {
				// shifted right by the insertion
				unchecked[i]++
			}
		}
	}
	slices.Sort(unchecked)
	return unchecked, nil
}

func (a *NeighborArray) insertSorted(sc scorer.RandomVectorScorer) (int, error) {
	node := a.nodes[a.sortedNodeSize]
	score := a.scores[a.sortedNodeSize]
	if math.IsNaN(float64(score)) {
		s, err := sc.Score(node)
		if err != nil {
			return 0, err
		}
		score = s
	}
	var at int
	if a.scoresDescOrder {
		at = a.descInsertionPoint(score, a.sortedNodeSize)
	} else {
		at = a.ascInsertionPoint(score, a.sortedNodeSize)
	}
	copy(a.nodes[at+1:a.sortedNodeSize+1], a.nodes[at:a.sortedNodeSize])
	copy(a.scores[at+1:a.sortedNodeSize+1], a.scores[at:a.sortedNodeSize])
	a.nodes[at] = node
	a.scores[at] = score
	a.sortedNodeSize++
	return at, nil
}

// descInsertionPoint returns the rightmost insertion point in a descending prefix.
func (a *NeighborArray) descInsertionPoint(score float32, bound int) int {
	lo, hi := 0, bound-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if a.scores[mid] < score {
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func (a *NeighborArray) ascInsertionPoint(score float32, bound int) int {
	lo, hi := 0, bound-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if a.scores[mid] > score {
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// findWorstNonDiverse sorts the array and scans from the worst entry toward
// the best. Only pairs that involve at least one unchecked entry are
// compared; checked pairs were verified when they were inserted.
func (a *NeighborArray) findWorstNonDiverse(sc scorer.UpdateableRandomVectorScorer) (int, error) {
	unchecked, err := a.Sort(sc)
	if err != nil {
		return 0, err
	}
	cursor := len(unchecked) - 1
	for i := a.size - 1; i > 0 && cursor >= 0; i-- {
		if err := sc.SetScoringOrdinal(a.nodes[i]); err != nil {
			return 0, err
		}
		worst, err := a.isWorstNonDiverse(i, unchecked, cursor, sc)
		if err != nil {
			return 0, err
		}
		if worst {
			return i, nil
		}
		if i == unchecked[cursor] {
			cursor--
		}
	}
	return a.size - 1, nil
}

func (a *NeighborArray) isWorstNonDiverse(candidate int, unchecked []int, cursor int, sc scorer.RandomVectorScorer) (bool, error) {
	minAccepted := a.scores[candidate]
	if candidate == unchecked[cursor] {
		for i := candidate - 1; i >= 0; i-- {
			s, err := sc.Score(a.nodes[i])
			if err != nil {
				return false, err
			}
			if s >= minAccepted {
				return true, nil
			}
		}
		return false, nil
	}
	for i := cursor; i >= 0; i-- {
		s, err := sc.Score(a.nodes[unchecked[i]])
		if err != nil {
			return false, err
		}
		if s >= minAccepted {
			return true, nil
		}
	}
	return false, nil
}

// Size returns the number of neighbors.
func (a *NeighborArray) Size() int { return a.size }

// MaxSize returns the capacity, one more than the connection limit.
func (a *NeighborArray) MaxSize() int { return len(a.nodes) }

// SortedSize returns the length of the sorted prefix.
func (a *NeighborArray) SortedSize() int { return a.sortedNodeSize }

// Nodes returns the neighbor ids. Only the first Size entries are valid.
func (a *NeighborArray) Nodes() []int { return a.nodes[:a.size] }

// Scores returns the neighbor scores. Only the first Size entries are valid.
func (a *NeighborArray) Scores() []float32 { return a.scores[:a.size] }

// DescOrder reports whether the sorted prefix is in descending score order.
func (a *NeighborArray) DescOrder() bool { return a.scoresDescOrder }

// Clear removes all neighbors.
func (a *NeighborArray) Clear() {
	a.size = 0
	a.sortedNodeSize = 0
}

// RemoveLast removes the last neighbor.
func (a *NeighborArray) RemoveLast() {
	a.size--
	a.sortedNodeSize = min(a.sortedNodeSize, a.size)
}

// RemoveIndex removes the neighbor at idx, shifting later entries left.
func (a *NeighborArray) RemoveIndex(idx int) {
	if idx == a.size-1 {
		a.RemoveLast()
		return
	}
	copy(a.nodes[idx:a.size-1], a.nodes[idx+1:a.size])
	copy(a.scores[idx:a.size-1], a.scores[idx+1:a.size])
	if idx < a.sortedNodeSize {
		a.sortedNodeSize--
	}
	a.size--
}

// ramBytes estimates the heap footprint.
func (a *NeighborArray) ramBytes() int64 {
	return 56 + int64(len(a.nodes))*(8+4)
}

func (a *NeighborArray) String() string {
	return fmt.Sprintf("NeighborArray[%d]", a.size)
}
