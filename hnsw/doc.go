// Package hnsw implements Hierarchical Navigable Small World graphs.
//
// The graph stores adjacency only. Vector data and similarity live behind
// the scorer package contracts, results leave through a knn.Collector.
//
// # Components
//
//   - OnHeapGraph: per-node per-level NeighborArray slots and an atomically
//     swapped EntryNode
//   - Searcher, FilteredSearcher, SeededSearcher: entry point discovery and
//     layered beam search
//   - Builder: sequential construction with diverse neighbor selection and
//     connectivity repair
//   - ConcurrentBuilder: workers claim ordinal batches from an atomic cursor
//     and mutate adjacency under a striped Lock
//   - IncrementalMerger, ConcurrentMerger: warm start from the largest
//     deletion-free segment graph
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw
