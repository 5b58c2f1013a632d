// Package distance provides the vector similarity functions used to score
// graph neighbors.
//
// Every metric is expressed as a similarity where a higher score is better.
// This keeps the graph code free of metric-specific ordering rules.
//
// # Supported Metrics
//
//   - Euclidean: 1 / (1 + squared L2 distance)
//   - DotProduct: (1 + a·b) / 2, for unit-length vectors
//   - Cosine: (1 + cos(a, b)) / 2
//   - MaximumInnerProduct: scaled raw inner product, for unnormalized vectors
//
// # Usage
//
//	score := distance.Euclidean.Compare(a, b)
//	sim := distance.Dot(a, b)
package distance
