// Package knn defines how search results leave the graph: the Collector
// contract, a top-k collector with a visited-node budget, and the search
// strategies that select between plain, filtered and seeded traversal.
package knn
