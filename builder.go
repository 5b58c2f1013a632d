package hnswgraph

import (
	"github.com/hupe1980/hnswgraph/distance"
)

// HNSW creates a new index builder with the specified dimension.
//
// The builder is immutable - each method returns a new builder with the updated configuration.
// This ensures thread-safety and prevents accidental state sharing.
//
// Example:
//
//	ix, err := hnswgraph.HNSW(128).
//	    Cosine().
//	    M(32).
//	    BeamWidth(200).
//	    Workers(4).
//	    Build()
func HNSW(dimension int) IndexBuilder {
	return IndexBuilder{
		dimension: dimension,
		opts:      DefaultOptions,
	}
}

// IndexBuilder is an immutable fluent builder for creating an Index.
// Each method returns a new builder with the updated configuration.
type IndexBuilder struct {
	dimension int
	opts      Options
}

// Euclidean sets the similarity to 1/(1+squared L2 distance).
func (b IndexBuilder) Euclidean() IndexBuilder {
	b.opts.Metric = distance.Euclidean
	return b
}

// Cosine sets the similarity to cosine similarity.
func (b IndexBuilder) Cosine() IndexBuilder {
	b.opts.Metric = distance.Cosine
	return b
}

// DotProduct sets the similarity to the dot product of unit vectors.
func (b IndexBuilder) DotProduct() IndexBuilder {
	b.opts.Metric = distance.DotProduct
	return b
}

// MaximumInnerProduct sets the similarity to the scaled inner product of
// arbitrary vectors.
func (b IndexBuilder) MaximumInnerProduct() IndexBuilder {
	b.opts.Metric = distance.MaximumInnerProduct
	return b
}

// M sets the maximum number of connections per node above level 0.
// Level 0 allows 2*M.
func (b IndexBuilder) M(m int) IndexBuilder {
	b.opts.M = m
	return b
}

// BeamWidth sets the candidate list size used while inserting nodes.
func (b IndexBuilder) BeamWidth(w int) IndexBuilder {
	b.opts.BeamWidth = w
	return b
}

// Seed sets the level assignment seed.
func (b IndexBuilder) Seed(seed int64) IndexBuilder {
	b.opts.Seed = seed
	return b
}

// Workers sets the number of construction goroutines.
func (b IndexBuilder) Workers(n int) IndexBuilder {
	b.opts.Workers = n
	return b
}

// BatchSize sets the number of ordinals a concurrent worker claims at a time.
func (b IndexBuilder) BatchSize(n int) IndexBuilder {
	b.opts.BatchSize = n
	return b
}

// MemoryLimit bounds the estimated graph footprint in bytes.
func (b IndexBuilder) MemoryLimit(bytes int64) IndexBuilder {
	b.opts.MemoryLimitBytes = bytes
	return b
}

// FilteredSearchThreshold sets the filter selectivity in percent below which
// the filtered traversal is used. 0 disables it.
func (b IndexBuilder) FilteredSearchThreshold(percent int) IndexBuilder {
	b.opts.FilteredSearchThreshold = percent
	return b
}

// Logger sets the logger.
func (b IndexBuilder) Logger(l *Logger) IndexBuilder {
	b.opts.Logger = l
	return b
}

// Metrics sets the metrics collector.
func (b IndexBuilder) Metrics(mc MetricsCollector) IndexBuilder {
	b.opts.MetricsCollector = mc
	return b
}

// Build creates the Index.
func (b IndexBuilder) Build() (*Index, error) {
	return New(b.dimension, func(o *Options) {
		*o = b.opts
	})
}

// MustBuild creates the Index, panicking on error.
// Use this only in tests or when you're certain the configuration is valid.
func (b IndexBuilder) MustBuild() *Index {
	ix, err := b.Build()
	if err != nil {
		panic(err)
	}
	return ix
}
