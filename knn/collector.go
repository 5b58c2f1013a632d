package knn

import (
	"math"
	"slices"

	"github.com/hupe1980/hnswgraph/internal/queue"
)

// Collector receives scored nodes from a graph search.
type Collector interface {
	// Collect offers a result and reports whether it was accepted.
	Collect(doc int, score float32) bool
	// MinCompetitiveSimilarity is the score a result must exceed to be accepted.
	MinCompetitiveSimilarity() float32
	// EarlyTerminated reports whether the search must stop.
	EarlyTerminated() bool
	IncVisitedCount(n int)
	VisitedCount() int64
	VisitLimit() int64
	K() int
	SearchStrategy() SearchStrategy
}

// TotalHitsRelation qualifies TopDocs.TotalHits.
type TotalHitsRelation int

const (
	// EqualTo means the search visited every reachable candidate.
	EqualTo TotalHitsRelation = iota
	// GreaterThanOrEqualTo means the search stopped on its visit budget.
	GreaterThanOrEqualTo
)

func (r TotalHitsRelation) String() string {
	if r == GreaterThanOrEqualTo {
		return ">="
	}
	return "="
}

// ScoreDoc is a single search hit.
type ScoreDoc struct {
	Doc   int
	Score float32
}

// TopDocs holds hits best first. TotalHits is the number of visited nodes.
type TopDocs struct {
	TotalHits int64
	Relation  TotalHitsRelation
	ScoreDocs []ScoreDoc
}

// TopKCollector keeps the k best results seen, stopping once visitLimit
// nodes have been visited.
type TopKCollector struct {
	k          int
	visitLimit int64
	visited    int64
	strategy   SearchStrategy
	queue      *queue.NeighborQueue
}

// NewTopKCollector creates a collector. A non-positive visitLimit means unlimited.
func NewTopKCollector(k int, visitLimit int64, strategy SearchStrategy) *TopKCollector {
	if visitLimit <= 0 {
		visitLimit = math.MaxInt64
	}
	return &TopKCollector{
		k:          k,
		visitLimit: visitLimit,
		strategy:   strategy,
		queue:      queue.New(k, false),
	}
}

func (c *TopKCollector) Collect(doc int, score float32) bool {
	return c.queue.InsertWithOverflow(doc, score)
}

func (c *TopKCollector) MinCompetitiveSimilarity() float32 {
	if c.queue.Size() >= c.k {
		return c.queue.TopScore()
	}
	return float32(math.Inf(-1))
}

func (c *TopKCollector) EarlyTerminated() bool { return c.visited >= c.visitLimit }

func (c *TopKCollector) IncVisitedCount(n int) { c.visited += int64(n) }

func (c *TopKCollector) VisitedCount() int64 { return c.visited }

func (c *TopKCollector) VisitLimit() int64 { return c.visitLimit }

func (c *TopKCollector) K() int { return c.k }

func (c *TopKCollector) SearchStrategy() SearchStrategy { return c.strategy }

// TopDocs drains the collector and returns its results best first.
func (c *TopKCollector) TopDocs() TopDocs {
	for c.queue.Size() > c.k {
		c.queue.Pop()
	}
	docs := make([]ScoreDoc, c.queue.Size())
	for i := len(docs) - 1; i >= 0; i-- {
		score := c.queue.TopScore()
		docs[i] = ScoreDoc{Doc: c.queue.Pop(), Score: score}
	}
	rel := EqualTo
	if c.EarlyTerminated() {
		rel = GreaterThanOrEqualTo
	}
	return TopDocs{TotalHits: c.visited, Relation: rel, ScoreDocs: docs}
}

// OrdinalTranslatedCollector maps vector ordinals to document ids before
// handing results to the wrapped collector.
type OrdinalTranslatedCollector struct {
	Collector
	ordToDoc func(ord int) int
}

// NewOrdinalTranslatedCollector wraps in, translating with ordToDoc.
func NewOrdinalTranslatedCollector(in Collector, ordToDoc func(ord int) int) *OrdinalTranslatedCollector {
	return &OrdinalTranslatedCollector{Collector: in, ordToDoc: ordToDoc}
}

func (c *OrdinalTranslatedCollector) Collect(ord int, score float32) bool {
	return c.Collector.Collect(c.ordToDoc(ord), score)
}

// Docs returns the documents of hits in order, a convenience for callers
// that only need ids.
func (t TopDocs) Docs() []int {
	docs := make([]int, len(t.ScoreDocs))
	for i, sd := range t.ScoreDocs {
		docs[i] = sd.Doc
	}
	return docs
}

// SortByDoc orders hits by ascending document id.
func (t TopDocs) SortByDoc() {
	slices.SortFunc(t.ScoreDocs, func(a, b ScoreDoc) int { return a.Doc - b.Doc })
}
