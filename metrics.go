package hnswgraph

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the metric
// package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordAdd is called after vectors were appended to the index.
	RecordAdd(count int, err error)

	// RecordBuild is called after each graph build.
	// nodes is the graph size, workers the number of construction goroutines.
	RecordBuild(nodes, workers int, duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested, visited the number of scored
	// nodes and exact reports whether the exhaustive fallback answered.
	RecordSearch(k int, visited int64, exact bool, duration time.Duration, err error)

	// RecordMerge is called after each merge.
	// initialized is the number of nodes warm started from a segment graph.
	RecordMerge(initialized, total int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(int, error)                                {}
func (NoopMetricsCollector) RecordBuild(int, int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordSearch(int, int64, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordMerge(int, int, time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddVectors       atomic.Int64
	AddErrors        atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildNodes       atomic.Int64
	BuildTotalNanos  atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchExact      atomic.Int64
	SearchVisited    atomic.Int64
	SearchTotalNanos atomic.Int64
	MergeCount       atomic.Int64
	MergeErrors      atomic.Int64
	MergeInitialized atomic.Int64
	MergeTotalNanos  atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(count int, err error) {
	b.AddCount.Add(1)
	if err != nil {
		b.AddErrors.Add(1)
		return
	}
	b.AddVectors.Add(int64(count))
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(nodes, _ int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildNodes.Add(int64(nodes))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, visited int64, exact bool, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchVisited.Add(visited)
	if exact {
		b.SearchExact.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(initialized, _ int, duration time.Duration, err error) {
	b.MergeCount.Add(1)
	b.MergeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MergeErrors.Add(1)
		return
	}
	b.MergeInitialized.Add(int64(initialized))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:         b.AddCount.Load(),
		AddVectors:       b.AddVectors.Load(),
		AddErrors:        b.AddErrors.Load(),
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		BuildNodes:       b.BuildNodes.Load(),
		BuildAvgNanos:    average(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchExact:      b.SearchExact.Load(),
		SearchAvgVisited: average(b.SearchVisited.Load(), b.SearchCount.Load()),
		SearchAvgNanos:   average(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		MergeCount:       b.MergeCount.Load(),
		MergeErrors:      b.MergeErrors.Load(),
		MergeInitialized: b.MergeInitialized.Load(),
		MergeAvgNanos:    average(b.MergeTotalNanos.Load(), b.MergeCount.Load()),
	}
}

func average(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount         int64
	AddVectors       int64
	AddErrors        int64
	BuildCount       int64
	BuildErrors      int64
	BuildNodes       int64
	BuildAvgNanos    int64
	SearchCount      int64
	SearchErrors     int64
	SearchExact      int64
	SearchAvgVisited int64
	SearchAvgNanos   int64
	MergeCount       int64
	MergeErrors      int64
	MergeInitialized int64
	MergeAvgNanos    int64
}
