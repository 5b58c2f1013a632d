// Package testutil provides testing utilities for hnswgraph.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, computing exact
// nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(1000, 32)
//
// # Exact Search (Ground Truth)
//
//	truth := testutil.BruteForceSearch(distance.Euclidean, vecs, query, k, nil)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(truth, approx)
//	stats := testutil.SummarizeRecall(recalls)
package testutil
