package hnsw

import (
	"math"

	"github.com/hupe1980/hnswgraph/internal/queue"
	"github.com/hupe1980/hnswgraph/knn"
)

// BuilderCollector is the knn.Collector used during construction. It keeps
// the k best candidates in a min heap, never terminates early and collects
// ordinals untranslated.
type BuilderCollector struct {
	queue   *queue.NeighborQueue
	k       int
	visited int64
}

var _ knn.Collector = (*BuilderCollector)(nil)

// NewBuilderCollector creates a collector keeping k candidates.
func NewBuilderCollector(k int) *BuilderCollector {
	return &BuilderCollector{queue: queue.New(k, false), k: k}
}

// Size returns the number of collected candidates.
func (c *BuilderCollector) Size() int { return c.queue.Size() }

// PopNode removes the worst candidate and returns it.
func (c *BuilderCollector) PopNode() int { return c.queue.Pop() }

// MinimumScore returns the score of the worst candidate.
func (c *BuilderCollector) MinimumScore() float32 { return c.queue.TopScore() }

// PopUntilNearestKNodes drops candidates beyond k and returns the rest in heap order.
func (c *BuilderCollector) PopUntilNearestKNodes() []int {
	for c.queue.Size() > c.k {
		c.queue.Pop()
	}
	return c.queue.Nodes()
}

// Clear resets the collector for reuse.
func (c *BuilderCollector) Clear() {
	c.queue.Clear()
	c.visited = 0
}

func (c *BuilderCollector) Collect(doc int, score float32) bool {
	return c.queue.InsertWithOverflow(doc, score)
}

func (c *BuilderCollector) MinCompetitiveSimilarity() float32 {
	if c.queue.Size() >= c.k {
		return c.queue.TopScore()
	}
	return float32(math.Inf(-1))
}

func (c *BuilderCollector) EarlyTerminated() bool { return false }

func (c *BuilderCollector) IncVisitedCount(n int) { c.visited += int64(n) }

func (c *BuilderCollector) VisitedCount() int64 { return c.visited }

func (c *BuilderCollector) VisitLimit() int64 { return math.MaxInt64 }

func (c *BuilderCollector) K() int { return c.k }

func (c *BuilderCollector) SearchStrategy() knn.SearchStrategy { return nil }
