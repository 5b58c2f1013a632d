// Package scorer defines the vector access and scoring contracts consumed by
// the graph builders and searchers, together with in-memory float32
// implementations.
//
// The graph never owns vector data. It only sees dense ordinals in
// [0, size) and asks a scorer for the similarity of an ordinal to the
// currently bound query or anchor vector.
package scorer
