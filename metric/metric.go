// Package metric exports hnswgraph operation metrics to Prometheus.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/hnswgraph"
)

const namespace = "hnswgraph"

var _ hnswgraph.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements hnswgraph.MetricsCollector with Prometheus
// counters, gauges and histograms.
type PrometheusCollector struct {
	opLatency   *prometheus.HistogramVec
	ops         *prometheus.CounterVec
	added       prometheus.Counter
	graphNodes  prometheus.Gauge
	workers     prometheus.Gauge
	visited     prometheus.Histogram
	exact       prometheus.Counter
	initialized prometheus.Gauge
}

// NewPrometheusCollector creates a collector and registers its metrics with
// reg. It panics if a metric is already registered. A nil reg uses
// prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PrometheusCollector{
		opLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of index operations",
			// searches take microseconds, builds of large graphs minutes
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 14),
		}, []string{"op", "status"}),
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total index operations",
		}, []string{"op", "status"}),
		added: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "added_vectors_total",
			Help:      "Total vectors added",
		}),
		graphNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Number of nodes in the last built graph",
		}),
		workers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_workers",
			Help:      "Construction goroutines of the last build",
		}),
		visited: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_visited_nodes",
			Help:      "Nodes scored per search",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 16),
		}),
		exact: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_exact_total",
			Help:      "Searches answered by an exact scan",
		}),
		initialized: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merge_initialized_nodes",
			Help:      "Nodes warm started from a segment graph by the last merge",
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (p *PrometheusCollector) observe(op string, d time.Duration, err error) {
	s := status(err)
	p.ops.WithLabelValues(op, s).Inc()
	p.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
}

// RecordAdd implements hnswgraph.MetricsCollector.
func (p *PrometheusCollector) RecordAdd(count int, err error) {
	p.ops.WithLabelValues("add", status(err)).Inc()
	if err == nil {
		p.added.Add(float64(count))
	}
}

// RecordBuild implements hnswgraph.MetricsCollector.
func (p *PrometheusCollector) RecordBuild(nodes, workers int, d time.Duration, err error) {
	p.observe("build", d, err)
	if err == nil {
		p.graphNodes.Set(float64(nodes))
		p.workers.Set(float64(workers))
	}
}

// RecordSearch implements hnswgraph.MetricsCollector.
func (p *PrometheusCollector) RecordSearch(_ int, visited int64, exact bool, d time.Duration, err error) {
	p.observe("search", d, err)
	if err != nil {
		return
	}
	p.visited.Observe(float64(visited))
	if exact {
		p.exact.Inc()
	}
}

// RecordMerge implements hnswgraph.MetricsCollector.
func (p *PrometheusCollector) RecordMerge(initialized, total int, d time.Duration, err error) {
	p.observe("merge", d, err)
	if err == nil {
		p.initialized.Set(float64(initialized))
		p.graphNodes.Set(float64(total))
	}
}
