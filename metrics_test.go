package hnswgraph

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicMetricsCollector(t *testing.T) {
	m := &BasicMetricsCollector{}
	failure := errors.New("failed")

	m.RecordAdd(5, nil)
	m.RecordAdd(2, failure)
	m.RecordBuild(100, 2, 10*time.Millisecond, nil)
	m.RecordBuild(0, 2, 30*time.Millisecond, failure)
	m.RecordSearch(10, 40, false, 2*time.Microsecond, nil)
	m.RecordSearch(10, 20, true, 4*time.Microsecond, nil)
	m.RecordMerge(80, 120, time.Second, nil)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.AddCount)
	assert.Equal(t, int64(5), stats.AddVectors)
	assert.Equal(t, int64(1), stats.AddErrors)
	assert.Equal(t, int64(2), stats.BuildCount)
	assert.Equal(t, int64(1), stats.BuildErrors)
	assert.Equal(t, int64(100), stats.BuildNodes)
	assert.Equal(t, (20 * time.Millisecond).Nanoseconds(), stats.BuildAvgNanos)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchExact)
	assert.Equal(t, int64(30), stats.SearchAvgVisited)
	assert.Equal(t, int64(3000), stats.SearchAvgNanos)
	assert.Equal(t, int64(80), stats.MergeInitialized)
	assert.Equal(t, time.Second.Nanoseconds(), stats.MergeAvgNanos)
}

func TestBasicMetricsCollector_Empty(t *testing.T) {
	assert.Equal(t, BasicMetricsStats{}, (&BasicMetricsCollector{}).GetStats())
}

func TestNoopMetricsCollector(t *testing.T) {
	var m MetricsCollector = NoopMetricsCollector{}
	m.RecordAdd(1, nil)
	m.RecordBuild(1, 1, 0, nil)
	m.RecordSearch(1, 1, false, 0, nil)
	m.RecordMerge(1, 1, 0, nil)
}
