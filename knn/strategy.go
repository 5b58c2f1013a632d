package knn

// DefaultFilteredSearchThreshold is the accepted-node percentage below which
// the filtered graph traversal is used.
const DefaultFilteredSearchThreshold = 60

// SearchStrategy selects a graph traversal variant.
type SearchStrategy interface {
	searchStrategy()
}

// HNSWStrategy configures plain and filtered traversal.
type HNSWStrategy struct {
	// FilteredSearchThreshold is a percentage in [0, 100]. Zero disables
	// filtered traversal.
	FilteredSearchThreshold int
}

// DefaultHNSWStrategy returns the strategy used when a collector has none.
func DefaultHNSWStrategy() HNSWStrategy {
	return HNSWStrategy{FilteredSearchThreshold: DefaultFilteredSearchThreshold}
}

// UseFilteredSearch reports whether accepting ratio of the graph calls for
// the filtered traversal.
func (s HNSWStrategy) UseFilteredSearch(ratio float64) bool {
	return ratio*100 < float64(s.FilteredSearchThreshold)
}

func (HNSWStrategy) searchStrategy() {}

// SeededStrategy starts level 0 search from fixed ordinals instead of
// descending from the entry node.
type SeededStrategy struct {
	Seeds []int
	// Inner is consulted when no seeds are supplied.
	Inner SearchStrategy
}

func (SeededStrategy) searchStrategy() {}
