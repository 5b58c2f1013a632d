package hnswgraph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/hnsw"
	"github.com/hupe1980/hnswgraph/knn"
	"github.com/hupe1980/hnswgraph/scorer"
)

// ErrNotFound is returned by First when a search has no result.
var ErrNotFound = errors.New("no result found")

// Result is a single search hit. Higher scores are more similar.
type Result struct {
	ID    int
	Score float32
}

// SearchOptions configures a kNN search.
type SearchOptions struct {
	// Filter restricts results to accepted ids. Nil accepts every id.
	Filter filter.Bits

	// VisitLimit bounds the number of scored nodes. 0 means unlimited for
	// unfiltered searches and the filter cardinality for filtered ones,
	// falling back to an exact search when the budget runs out.
	VisitLimit int64

	// Seeds replaces entry point discovery with the given ids.
	Seeds []int
}

// exactScanCheckInterval is the number of scored vectors between context
// checks of the exact search.
const exactScanCheckInterval = 1024

// KNNSearch returns the k most similar built vectors to query, best first.
//
// Only vectors covered by the last Build are searched. Restrictive filters
// switch to the filtered traversal; when at most k ids are accepted, or the
// graph search cannot fill k results within the budget, the accepted vectors
// are scanned exactly instead.
func (ix *Index) KNNSearch(ctx context.Context, query []float32, k int, optFns ...func(o *SearchOptions)) (results []Result, err error) {
	start := time.Now()

	opts := SearchOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var (
		visited int64
		exact   bool
	)
	defer func() {
		ix.opts.Logger.LogSearch(ctx, k, len(results), exact, err)
		ix.opts.MetricsCollector.RecordSearch(k, visited, exact, time.Since(start), err)
	}()

	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != ix.dim {
		return nil, &ErrDimensionMismatch{Expected: ix.dim, Actual: len(query)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	g, values, closed := ix.graph, ix.values, ix.closed
	ix.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if g == nil {
		return nil, ErrEmptyIndex
	}

	n := values.Size()
	sc, err := scorer.NewQueryScorer(values, ix.opts.Metric, query)
	if err != nil {
		return nil, translateError(err)
	}

	accept, c := acceptedWithin(opts.Filter, n)
	if c == 0 {
		return []Result{}, nil
	}

	if accept != nil && c <= k {
		exact = true
		results, visited, err = exactSearch(ctx, sc, k, accept, n)
		return results, err
	}

	visitLimit := opts.VisitLimit
	if accept != nil && visitLimit <= 0 {
		visitLimit = int64(c) + 1
	}

	var strategy knn.SearchStrategy = knn.HNSWStrategy{FilteredSearchThreshold: ix.opts.FilteredSearchThreshold}
	if len(opts.Seeds) > 0 {
		strategy = knn.SeededStrategy{Seeds: opts.Seeds, Inner: strategy}
	}

	collector := knn.NewTopKCollector(k, visitLimit, strategy)
	if err := hnsw.Search(sc, collector, g, accept); err != nil {
		return nil, translateError(err)
	}

	td := collector.TopDocs()
	visited = td.TotalHits

	if accept != nil && opts.VisitLimit <= 0 &&
		(collector.EarlyTerminated() || len(td.ScoreDocs) < min(k, c)) {
		exact = true
		var scanned int64
		results, scanned, err = exactSearch(ctx, sc, k, accept, n)
		visited += scanned
		return results, err
	}

	results = make([]Result, len(td.ScoreDocs))
	for i, sd := range td.ScoreDocs {
		results[i] = Result{ID: sd.Doc, Score: sd.Score}
	}

	return results, nil
}

// acceptedWithin restricts accept to the first n ids and returns the number
// of accepted ids. A nil accept accepts all n ids.
func acceptedWithin(accept filter.Bits, n int) (filter.Bits, int) {
	if accept == nil {
		return nil, n
	}
	if c, ok := filter.Cardinality(accept); ok && accept.Len() <= n {
		return accept, c
	}

	fixed := filter.NewFixed(n)
	for i := range min(n, accept.Len()) {
		if accept.Get(i) {
			fixed.Set(i)
		}
	}

	return fixed, fixed.Cardinality()
}

func exactSearch(ctx context.Context, sc scorer.RandomVectorScorer, k int, accept filter.Bits, n int) ([]Result, int64, error) {
	collector := knn.NewTopKCollector(k, 0, nil)

	var scanned int64
	for ord := range n {
		if !accept.Get(ord) {
			continue
		}
		if scanned%exactScanCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, scanned, err
			}
		}
		score, err := sc.Score(ord)
		if err != nil {
			return nil, scanned, translateError(err)
		}
		collector.Collect(sc.OrdToDoc(ord), score)
		scanned++
	}

	td := collector.TopDocs()
	results := make([]Result, len(td.ScoreDocs))
	for i, sd := range td.ScoreDocs {
		results[i] = Result{ID: sd.Doc, Score: sd.Score}
	}

	return results, scanned, nil
}

// Search creates a new fluent search builder for the given query vector.
//
// Example:
//
//	results, err := ix.Search(query).
//	    KNN(10).
//	    Filter(accept).
//	    Execute(ctx)
//
//	// Or with streaming:
//	for result, err := range ix.Search(query).KNN(100).Stream(ctx) {
//	    if err != nil { break }
//	    if result.Score < threshold { break }
//	    process(result)
//	}
func (ix *Index) Search(query []float32) *SearchBuilder {
	return &SearchBuilder{
		ix:    ix,
		query: query,
		k:     10, // Default k
	}
}

// SearchBuilder is a fluent builder for constructing search queries.
type SearchBuilder struct {
	ix    *Index
	query []float32
	k     int
	opts  SearchOptions
}

// KNN sets the number of nearest neighbors to return.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// VisitLimit bounds the number of nodes the graph search scores.
func (sb *SearchBuilder) VisitLimit(limit int64) *SearchBuilder {
	sb.opts.VisitLimit = limit
	return sb
}

// Filter restricts results to the ids accept matches.
func (sb *SearchBuilder) Filter(accept filter.Bits) *SearchBuilder {
	sb.opts.Filter = accept
	return sb
}

// WhereID filters results with a predicate over ids.
// Convenience method for Filter(filter.Func{...}) over the current index size.
func (sb *SearchBuilder) WhereID(fn func(id int) bool) *SearchBuilder {
	return sb.Filter(filter.Func{Fn: fn, Length: sb.ix.Len()})
}

// Seeds starts the level 0 search from the given ids instead of the entry node.
func (sb *SearchBuilder) Seeds(ids ...int) *SearchBuilder {
	sb.opts.Seeds = ids
	return sb
}

// Execute runs the search and returns the results.
func (sb *SearchBuilder) Execute(ctx context.Context) ([]Result, error) {
	return sb.ix.KNNSearch(ctx, sb.query, sb.k, func(o *SearchOptions) {
		*o = sb.opts
	})
}

// MustExecute runs the search, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder) MustExecute(ctx context.Context) []Result {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// Stream returns an iterator over search results, best first.
// The iterator supports early termination by breaking from the loop.
func (sb *SearchBuilder) Stream(ctx context.Context) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		results, err := sb.Execute(ctx)
		if err != nil {
			yield(Result{}, err)
			return
		}
		for _, r := range results {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// First returns only the nearest result, or ErrNotFound if none found.
func (sb *SearchBuilder) First(ctx context.Context) (Result, error) {
	sb.k = 1
	results, err := sb.Execute(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{}, fmt.Errorf("%w: query matched no built vector", ErrNotFound)
	}
	return results[0], nil
}

// Count executes the search and returns the number of results.
func (sb *SearchBuilder) Count(ctx context.Context) (int, error) {
	results, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}
