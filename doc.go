// Package hnswgraph provides an in-memory HNSW index for approximate
// nearest neighbor search over float32 vectors.
//
// The index combines the graph packages of this module: hnsw builds and
// searches the graph, scorer binds vectors to a similarity function, knn
// collects results and filter expresses accepted ids.
//
// # Quick Start
//
//	ix, _ := hnswgraph.New(128, hnswgraph.WithMetric(distance.Cosine))
//	ids, _ := ix.Add(vectors...)
//	_ = ix.Build(ctx)
//
//	results, _ := ix.KNNSearch(ctx, query, 10)
//	for _, r := range results {
//	    fmt.Println(r.ID, r.Score)
//	}
//
// Or with the fluent builders:
//
//	ix := hnswgraph.HNSW(128).Cosine().M(32).Workers(4).MustBuild()
//	results, _ := ix.Search(query).KNN(10).Filter(accept).Execute(ctx)
//
// # Building
//
// Vectors become searchable after Build. A second Build reuses the existing
// graph as a warm start and only inserts the vectors added since. With more
// than one worker the graph is built concurrently; insertion order, and
// therefore graph shape, then varies between runs.
//
// MergeFrom combines several indexes into one, seeding the merged graph with
// the largest input graph.
//
// # Filtered Search
//
// Filters accept ids. Restrictive filters use a filtered traversal that also
// expands neighbors of neighbors; a filter accepting at most k ids, or a graph
// search that cannot fill k results within its visit budget, falls back to an
// exact scan of the accepted vectors.
//
// # Observability
//
// Logger wraps log/slog. At debug level it also receives graph construction
// diagnostics. MetricsCollector receives build, merge and search metrics; the
// metric package provides a Prometheus implementation.
package hnswgraph
