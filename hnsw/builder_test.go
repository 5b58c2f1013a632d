package hnsw

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/scorer"
	"github.com/hupe1980/hnswgraph/testutil"
)

func TestBuilderLine(t *testing.T) {
	f := newFixture(t, distance.Euclidean, lineVectors(5))
	g := f.build(t, func(o *BuilderOptions) { o.M = 2 })

	require.Equal(t, 5, g.Size())
	requireTopLevelFirst(t, g)
	requireDegreeBounds(t, g)
	assert.True(t, IsRooted(g))

	t.Run("query on a node", func(t *testing.T) {
		docs := f.search(t, g, []float32{2}, 2, nil)
		// 1 and 3 tie; the smaller id wins
		assert.Equal(t, []int{2, 1}, docs.Docs())
	})

	t.Run("query node excluded", func(t *testing.T) {
		accept := filter.RoaringOf(5, 0, 1, 3, 4)
		docs := f.search(t, g, []float32{2}, 2, accept)
		assert.ElementsMatch(t, []int{1, 3}, docs.Docs())
	})

	t.Run("query between nodes", func(t *testing.T) {
		docs := f.search(t, g, []float32{2.25}, 2, nil)
		assert.Equal(t, []int{2, 3}, docs.Docs())
	})
}

func TestBuilderInvariants(t *testing.T) {
	rng := testutil.NewRNG(7)
	f := newFixture(t, distance.Euclidean, rng.UniformRangeVectors(2000, 16))
	g := f.build(t, func(o *BuilderOptions) {
		o.M = 8
		o.BeamWidth = 50
	})

	require.Equal(t, 2000, g.Size())
	require.Greater(t, g.NumLevels(), 1)
	requireTopLevelFirst(t, g)
	requireDegreeBounds(t, g)
	assert.True(t, IsRooted(g))

	top := g.Entry()
	assert.Equal(t, g.NumLevels()-1, top.Level)
	assert.Equal(t, top.Level, g.NodeLevel(top.Node))
}

func TestBuilderDeterministic(t *testing.T) {
	rng := testutil.NewRNG(11)
	f := newFixture(t, distance.Euclidean, rng.UniformVectors(500, 8))

	g1 := f.build(t, func(o *BuilderOptions) { o.M = 6 })
	g2 := f.build(t, func(o *BuilderOptions) { o.M = 6 })

	require.Equal(t, g1.Entry(), g2.Entry())
	for node := 0; node < 500; node++ {
		require.Equal(t, g1.NodeLevel(node), g2.NodeLevel(node))
		for level := 0; level <= g1.NodeLevel(node); level++ {
			require.Equal(t, neighborSet(g1, level, node), neighborSet(g2, level, node))
		}
	}
}

func TestBuilderSingleConnection(t *testing.T) {
	rng := testutil.NewRNG(3)
	f := newFixture(t, distance.Euclidean, rng.UniformVectors(200, 4))
	g := f.build(t, func(o *BuilderOptions) { o.M = 1 })

	assert.Equal(t, 1, g.NumLevels(), "M=1 keeps every node on level 0")
	requireDegreeBounds(t, g)
}

func TestBuilderGrowable(t *testing.T) {
	rng := testutil.NewRNG(5)
	f := newFixture(t, distance.DotProduct, rng.UnitVectors(300, 8))

	b, err := NewBuilder(f.supplier(), func(o *BuilderOptions) { o.M = 4 })
	require.NoError(t, err)
	for node := range 300 {
		require.NoError(t, b.AddGraphNode(node))
	}
	g, err := b.CompletedGraph()
	require.NoError(t, err)

	assert.Equal(t, 300, g.Size())
	assert.True(t, IsRooted(g))
	assert.ErrorIs(t, b.AddGraphNode(300), ErrFrozen)

	again, err := b.CompletedGraph()
	require.NoError(t, err)
	assert.Same(t, g, again)
}

func TestBuilderErrors(t *testing.T) {
	f := newFixture(t, distance.Euclidean, lineVectors(10))

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewBuilder(f.supplier(), func(o *BuilderOptions) { o.M = 0 })
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = NewBuilderWithSize(f.supplier(), 10, func(o *BuilderOptions) { o.BeamWidth = -1 })
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("frozen", func(t *testing.T) {
		b, err := NewBuilderWithSize(f.supplier(), 10)
		require.NoError(t, err)
		_, err = b.Build(context.Background(), 10)
		require.NoError(t, err)

		_, err = b.Build(context.Background(), 10)
		assert.ErrorIs(t, err, ErrFrozen)
	})

	t.Run("canceled", func(t *testing.T) {
		b, err := NewBuilderWithSize(f.supplier(), 10)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = b.Build(ctx, 10)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("scorer error", func(t *testing.T) {
		b, err := NewBuilderWithSize(f.supplier(), 11)
		require.NoError(t, err)
		_, err = b.Build(context.Background(), 11)
		assert.ErrorIs(t, err, scorer.ErrOrdinalOutOfRange)
	})
}

func TestBuilderInfoStream(t *testing.T) {
	f := newFixture(t, distance.Euclidean, lineVectors(50))
	stream := &recordingStream{}

	b, err := NewBuilderWithSize(f.supplier(), 50, func(o *BuilderOptions) {
		o.M = 2
		o.InfoStream = stream
	})
	require.NoError(t, err)
	_, err = b.Build(context.Background(), 50)
	require.NoError(t, err)

	assert.True(t, stream.contains("build graph from 50 vectors"))
	assert.True(t, stream.contains("built 0 in"))
	assert.True(t, stream.contains("connectComponents "))
}

func TestBuilderRepairsComponents(t *testing.T) {
	// three islands on level 0: {0,1,2}, {3,4} and {5}
	f := newFixture(t, distance.Euclidean, [][]float32{{0}, {1}, {2}, {10}, {11}, {20}})
	g := islandGraph(t)
	require.False(t, IsRooted(g))

	stream := &recordingStream{}
	b, err := newBuilder(f.supplier(), BuilderOptions{M: 2, BeamWidth: 10, InfoStream: stream}, g, nil, nil)
	require.NoError(t, err)
	_, err = b.CompletedGraph()
	require.NoError(t, err)

	assert.True(t, IsRooted(g))
	assert.True(t, stream.contains("connect 3 components on level=0"))
	assert.True(t, stream.contains("connected ok 1 -> 3"))
	assert.True(t, stream.contains("connected ok 2 -> 3"))
	assert.Contains(t, neighborSet(g, 0, 3), 2)
}

// islandGraph returns a single level graph of six nodes in three components.
func islandGraph(t *testing.T) *OnHeapGraph {
	t.Helper()
	g := NewOnHeapGraph(2, 6)
	for node := range 6 {
		g.AddNode(0, node)
	}
	require.True(t, g.TrySetNewEntryNode(0, 0))
	edge := func(a, b int) {
		g.Neighbors(0, a).AddOutOfOrder(b, 0)
		g.Neighbors(0, b).AddOutOfOrder(a, 0)
	}
	edge(0, 1)
	edge(1, 2)
	edge(3, 4)
	return g
}

func TestBuilderRecall(t *testing.T) {
	if testing.Short() {
		t.Skip("recall check builds a 10k graph")
	}

	const (
		numVectors = 10000
		dim        = 32
		k          = 10
	)
	rng := testutil.NewRNG(4711)
	vectors := rng.UnitVectors(numVectors, dim)
	f := newFixture(t, distance.Euclidean, vectors)
	g := f.build(t, func(o *BuilderOptions) {
		o.M = 16
		o.BeamWidth = 100
	})
	requireDegreeBounds(t, g)

	recalls := make([]float64, 100)
	for i := range recalls {
		query := rng.UnitVector(dim)
		truth := testutil.BruteForceSearch(distance.Euclidean, vectors, query, k, nil)
		docs := f.search(t, g, query, k, nil)
		approx := make([]testutil.SearchResult, len(docs.ScoreDocs))
		for j, sd := range docs.ScoreDocs {
			approx[j] = testutil.SearchResult{ID: sd.Doc, Score: sd.Score}
		}
		recalls[i] = testutil.ComputeRecall(truth, approx)
	}

	stats := testutil.SummarizeRecall(recalls)
	t.Logf("recall@%d mean=%.3f stddev=%.3f min=%.2f", k, stats.Mean, stats.StdDev, stats.Min)
	assert.GreaterOrEqual(t, stats.Mean, 0.9)
}
