package hnsw

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/knn"
	"github.com/hupe1980/hnswgraph/scorer"
)

type fixture struct {
	metric  distance.Metric
	vectors [][]float32
	values  *scorer.FloatVectors
}

func newFixture(t testing.TB, metric distance.Metric, vectors [][]float32) *fixture {
	t.Helper()
	values, err := scorer.NewFloatVectors(len(vectors[0]), vectors, nil)
	require.NoError(t, err)
	return &fixture{metric: metric, vectors: vectors, values: values}
}

func (f *fixture) supplier() scorer.Supplier {
	return scorer.NewFloatSupplier(f.values, f.metric)
}

func (f *fixture) build(t testing.TB, optFns ...func(o *BuilderOptions)) *OnHeapGraph {
	t.Helper()
	b, err := NewBuilderWithSize(f.supplier(), len(f.vectors), optFns...)
	require.NoError(t, err)
	g, err := b.Build(context.Background(), len(f.vectors))
	require.NoError(t, err)
	return g
}

func (f *fixture) search(t testing.TB, g Graph, query []float32, k int, accept filter.Bits) knn.TopDocs {
	t.Helper()
	return f.searchWith(t, g, query, knn.NewTopKCollector(k, 0, nil), accept)
}

func (f *fixture) searchWith(t testing.TB, g Graph, query []float32, c *knn.TopKCollector, accept filter.Bits) knn.TopDocs {
	t.Helper()
	sc, err := scorer.NewQueryScorer(f.values, f.metric, query)
	require.NoError(t, err)
	require.NoError(t, Search(sc, c, g, accept))
	return c.TopDocs()
}

// lineVectors places n one-dimensional vectors at 0, 1, ..., n-1.
func lineVectors(n int) [][]float32 {
	v := make([][]float32, n)
	for i := range v {
		v[i] = []float32{float32(i)}
	}
	return v
}

func neighborSet(g *OnHeapGraph, level, node int) []int {
	return append([]int(nil), g.Neighbors(level, node).Nodes()...)
}

func requireDegreeBounds(t *testing.T, g *OnHeapGraph) {
	t.Helper()
	m := g.MaxConn()
	for level := 0; level < g.NumLevels(); level++ {
		limit := m
		if level == 0 {
			limit = 2 * m
		}
		for _, node := range g.NodesOnLevel(level) {
			require.LessOrEqual(t, g.Neighbors(level, node).Size(), limit, "node %d level %d", node, level)
		}
	}
}

func requireTopLevelFirst(t *testing.T, g *OnHeapGraph) {
	t.Helper()
	for node := 0; node <= g.MaxNodeID(); node++ {
		top := g.NodeLevel(node)
		require.GreaterOrEqual(t, top, 0, "node %d missing", node)
		for level := 0; level <= top; level++ {
			require.NotNil(t, g.Neighbors(level, node), "node %d level %d", node, level)
		}
	}
}

type recordingStream struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingStream) Enabled(component string) bool { return component == InfoComponent }

func (r *recordingStream) Message(_, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingStream) contains(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}
