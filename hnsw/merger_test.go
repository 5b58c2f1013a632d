package hnsw

import (
	"context"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/filter"
	"github.com/hupe1980/hnswgraph/scorer"
	"github.com/hupe1980/hnswgraph/testutil"
)

var identityDocMap = DocMapFunc(func(doc int) int { return doc })

func TestInitGraphRemapsEdges(t *testing.T) {
	const n = 500
	rng := testutil.NewRNG(13)
	f := newFixture(t, distance.Euclidean, rng.UniformVectors(n, 8))
	src := f.build(t, func(o *BuilderOptions) { o.M = 6 })

	oldToNew := make([]int, n)
	for i := range oldToNew {
		oldToNew[i] = n - 1 - i
	}
	g := InitGraph(src, oldToNew, n)

	assert.Equal(t, n, g.Size())
	assert.Equal(t, src.NumLevels(), g.NumLevels())
	assert.Equal(t, src.MaxConn(), g.MaxConn())
	for old := 0; old < n; old++ {
		nu := oldToNew[old]
		require.Equal(t, src.NodeLevel(old), g.NodeLevel(nu))
		for level := 0; level <= src.NodeLevel(old); level++ {
			want := make([]int, 0)
			for _, nbr := range neighborSet(src, level, old) {
				want = append(want, oldToNew[nbr])
			}
			require.Equal(t, want, neighborSet(g, level, nu), "old %d level %d", old, level)
		}
	}
}

func TestInitGraphDropsUnmapped(t *testing.T) {
	g := islandGraph(t)

	// node 1 disappears, the others shift down
	oldToNew := []int{0, -1, 1, 2, 3, 4}
	out := InitGraph(g, oldToNew, 5)

	assert.Equal(t, 5, out.Size())
	assert.Empty(t, neighborSet(out, 0, 0))
	assert.Empty(t, neighborSet(out, 0, 1))
	assert.Equal(t, []int{3}, neighborSet(out, 0, 2))
	assert.Equal(t, 0, out.EntryNode())
}

func TestIncrementalMergerRoundTrip(t *testing.T) {
	const n = 500
	rng := testutil.NewRNG(17)
	f := newFixture(t, distance.Euclidean, rng.UniformVectors(n, 8))
	src := f.build(t, func(o *BuilderOptions) { o.M = 6 })
	require.True(t, IsRooted(src))

	m, err := NewIncrementalMerger(f.supplier(), func(o *BuilderOptions) { o.M = 6 })
	require.NoError(t, err)
	m.AddReader(Segment{Vectors: f.values, Graph: src}, identityDocMap, nil)

	g, err := m.Merge(context.Background(), f.values, nil, n)
	require.NoError(t, err)

	require.Equal(t, src.Entry(), g.Entry())
	for node := 0; node < n; node++ {
		require.Equal(t, src.NodeLevel(node), g.NodeLevel(node))
		for level := 0; level <= src.NodeLevel(node); level++ {
			require.Equal(t, neighborSet(src, level, node), neighborSet(g, level, node))
		}
	}
}

func TestIncrementalMergerAddsNewVectors(t *testing.T) {
	const (
		segSize = 300
		total   = 600
	)
	rng := testutil.NewRNG(19)
	vectors := rng.UnitVectors(total, 16)

	seg := newFixture(t, distance.Euclidean, vectors[:segSize])
	segGraph := seg.build(t, func(o *BuilderOptions) { o.M = 8 })

	merged := newFixture(t, distance.Euclidean, vectors)
	stream := &recordingStream{}

	for _, tc := range []struct {
		name  string
		merge func() (*OnHeapGraph, error)
	}{
		{
			name: "incremental",
			merge: func() (*OnHeapGraph, error) {
				m, err := NewIncrementalMerger(merged.supplier(), func(o *BuilderOptions) { o.M = 8 })
				if err != nil {
					return nil, err
				}
				m.AddReader(Segment{Vectors: seg.values, Graph: segGraph}, identityDocMap, nil)
				return m.Merge(context.Background(), merged.values, stream, total)
			},
		},
		{
			name: "concurrent",
			merge: func() (*OnHeapGraph, error) {
				m, err := NewConcurrentMerger(merged.supplier(), func(o *ConcurrentOptions) {
					o.M = 8
					o.Workers = 3
					o.BatchSize = 32
				})
				if err != nil {
					return nil, err
				}
				m.AddReader(Segment{Vectors: seg.values, Graph: segGraph}, identityDocMap, nil)
				return m.Merge(context.Background(), merged.values, stream, total)
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g, err := tc.merge()
			require.NoError(t, err)

			assert.Equal(t, total, g.Size())
			requireTopLevelFirst(t, g)
			requireDegreeBounds(t, g)
			assert.True(t, IsRooted(g))

			recalls := make([]float64, 20)
			for i := range recalls {
				query := rng.UnitVector(16)
				truth := testutil.BruteForceSearch(distance.Euclidean, vectors, query, 10, nil)
				docs := merged.search(t, g, query, 10, nil)
				approx := make([]testutil.SearchResult, len(docs.ScoreDocs))
				for j, sd := range docs.ScoreDocs {
					approx[j] = testutil.SearchResult{ID: sd.Doc}
				}
				recalls[i] = testutil.ComputeRecall(truth, approx)
			}
			assert.GreaterOrEqual(t, testutil.SummarizeRecall(recalls).Mean, 0.85)
		})
	}

	assert.True(t, stream.contains("initialized 300 of 600 nodes from segment graph"))
}

func TestMergerAddReader(t *testing.T) {
	rng := testutil.NewRNG(23)
	small := newFixture(t, distance.Euclidean, rng.UniformVectors(50, 4))
	large := newFixture(t, distance.Euclidean, rng.UniformVectors(120, 4))
	smallGraph := small.build(t, func(o *BuilderOptions) { o.M = 4 })
	largeGraph := large.build(t, func(o *BuilderOptions) { o.M = 4 })

	m, err := NewIncrementalMerger(large.supplier(), func(o *BuilderOptions) { o.M = 4 })
	require.NoError(t, err)

	_, ok := m.Initializer()
	assert.False(t, ok)

	m.AddReader(Segment{Vectors: small.values, Graph: smallGraph}, identityDocMap, nil).
		AddReader(Segment{Vectors: large.values}, identityDocMap, nil).
		AddReader(Segment{Vectors: large.values, Graph: Empty}, identityDocMap, nil)

	chosen, ok := m.Initializer()
	require.True(t, ok)
	assert.Same(t, small.values, chosen.Vectors)

	live := filter.NewFixed(120)
	for i := 1; i < 120; i++ {
		live.Set(i)
	}
	m.AddReader(Segment{Vectors: large.values, Graph: largeGraph}, identityDocMap, live)
	chosen, _ = m.Initializer()
	assert.Same(t, small.values, chosen.Vectors, "segments with deletions are not used")

	m.AddReader(Segment{Vectors: large.values, Graph: largeGraph}, identityDocMap, filter.MatchAll(120))
	chosen, _ = m.Initializer()
	assert.Same(t, large.values, chosen.Vectors)
}

func TestMergerIgnoresGraphWithOtherM(t *testing.T) {
	rng := testutil.NewRNG(24)
	f := newFixture(t, distance.Euclidean, rng.UniformVectors(200, 4))
	src := f.build(t, func(o *BuilderOptions) { o.M = 8 })

	m, err := NewIncrementalMerger(f.supplier(), func(o *BuilderOptions) { o.M = 4 })
	require.NoError(t, err)
	m.AddReader(Segment{Vectors: f.values, Graph: src}, identityDocMap, nil)

	_, ok := m.Initializer()
	assert.False(t, ok)

	g, err := m.Merge(context.Background(), f.values, nil, 200)
	require.NoError(t, err)
	assert.Equal(t, 4, g.MaxConn())
	assert.Equal(t, 200, g.Size())
	assert.Zero(t, m.Initialized())
	assert.True(t, IsRooted(g))
}

func TestMergerOrdMapping(t *testing.T) {
	segValues, err := scorer.NewFloatVectors(1, lineVectors(4), []int{0, 2, 4, 6})
	require.NoError(t, err)
	mergedValues, err := scorer.NewFloatVectors(1, lineVectors(6), []int{1, 3, 5, 7, 9, 11})
	require.NoError(t, err)

	seg := &fixture{metric: distance.Euclidean, vectors: lineVectors(4), values: segValues}
	segGraph := seg.build(t, func(o *BuilderOptions) { o.M = 2 })

	m, err := NewIncrementalMerger(scorer.NewFloatSupplier(mergedValues, distance.Euclidean), func(o *BuilderOptions) { o.M = 2 })
	require.NoError(t, err)
	// seg doc d becomes merged doc d+1, except doc 4 which was deleted
	docMap := DocMapFunc(func(doc int) int {
		if doc == 4 {
			return -1
		}
		return doc + 1
	})
	m.AddReader(Segment{Vectors: segValues, Graph: segGraph}, docMap, nil)

	initialized := bitset.New(6)
	oldToNew := m.newOrdMapping(mergedValues, initialized)

	assert.Equal(t, []int{0, 1, -1, 3}, oldToNew)
	assert.Equal(t, uint(3), initialized.Count())
	assert.True(t, initialized.Test(3))
	assert.False(t, initialized.Test(2))
}

func TestMergeWithoutInitializer(t *testing.T) {
	rng := testutil.NewRNG(29)
	f := newFixture(t, distance.Euclidean, rng.UniformVectors(200, 4))

	m, err := NewIncrementalMerger(f.supplier(), func(o *BuilderOptions) { o.M = 4 })
	require.NoError(t, err)
	g, err := m.Merge(context.Background(), f.values, nil, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, g.Size())
	assert.True(t, IsRooted(g))

	cm, err := NewConcurrentMerger(f.supplier(), func(o *ConcurrentOptions) { o.M = 4 })
	require.NoError(t, err)
	empty, err := cm.Merge(context.Background(), f.values, nil, 0)
	require.NoError(t, err)
	assert.Zero(t, empty.Size())
}
