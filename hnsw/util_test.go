package hnsw

import (
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/testutil"
)

func TestComponents(t *testing.T) {
	g := islandGraph(t)

	notFull := bitset.New(6)
	components := Components(g, 0, notFull, 2)

	assert.Equal(t, []Component{{Start: 0, Size: 3}, {Start: 3, Size: 2}, {Start: 5, Size: 1}}, components)
	// node 1 has two friends and is full at maxConn 2
	assert.False(t, notFull.Test(1))
	assert.Equal(t, uint(5), notFull.Count())

	assert.False(t, IsRooted(g))
	assert.Equal(t, [][]int{{3, 2, 1}}, ComponentSizes(g))
}

func TestComponentsSmallestStart(t *testing.T) {
	// 1 -> 3 -> 0 from the entry, 4 -> 2 unreachable
	g := NewOnHeapGraph(2, 5)
	for node := range 5 {
		g.AddNode(0, node)
	}
	require.True(t, g.TrySetNewEntryNode(1, 0))
	g.Neighbors(0, 1).AddOutOfOrder(3, 0)
	g.Neighbors(0, 3).AddOutOfOrder(0, 0)
	g.Neighbors(0, 4).AddOutOfOrder(2, 0)

	components := Components(g, 0, nil, 0)
	assert.Equal(t, []Component{{Start: 0, Size: 3}, {Start: 2, Size: 1}, {Start: 4, Size: 1}}, components)
}

func TestComponentsUpperLevels(t *testing.T) {
	g := NewOnHeapGraph(2, 4)
	levels := []int{1, 0, 1, 0}
	for node, top := range levels {
		for level := top; level >= 0; level-- {
			g.AddNode(level, node)
		}
	}
	require.True(t, g.TrySetNewEntryNode(0, 1))
	link := func(level, a, b int) {
		g.Neighbors(level, a).AddOutOfOrder(b, 0)
		g.Neighbors(level, b).AddOutOfOrder(a, 0)
	}
	link(0, 0, 1)
	link(0, 2, 3)

	sizes := ComponentSizes(g)
	assert.Equal(t, []int{2, 2}, sizes[0], "level 0 is rooted at both level 1 nodes")
	assert.Equal(t, []int{1, 1}, sizes[1], "level 1 has no edges")
	assert.False(t, IsRooted(g))

	link(1, 0, 2)
	assert.Equal(t, []int{2}, ComponentSizes(g)[1])
	assert.Equal(t, []int{2, 2}, ComponentSizes(g)[0], "level 0 still has one component per root")
	assert.False(t, IsRooted(g))

	link(0, 1, 2)
	assert.True(t, IsRooted(g))
}

func TestComponentsEmpty(t *testing.T) {
	assert.Nil(t, Components(NewOnHeapGraph(2, 0), 0, nil, 0))
	assert.True(t, IsRooted(NewOnHeapGraph(2, 0)))
	assert.True(t, IsRooted(Empty))
}

func TestGraphStats(t *testing.T) {
	rng := testutil.NewRNG(31)
	f := newFixture(t, distance.Euclidean, rng.UniformVectors(1000, 8))
	g := f.build(t, func(o *BuilderOptions) { o.M = 6 })

	st := GraphStats(g)
	assert.Equal(t, 1000, st.Size)
	assert.Equal(t, g.NumLevels(), st.NumLevels)
	assert.Equal(t, g.EntryNode(), st.EntryNode)
	assert.Equal(t, 6, st.MaxConn)
	require.Len(t, st.Levels, g.NumLevels())

	l0 := st.Levels[0]
	assert.Equal(t, 1000, l0.Nodes)
	assert.LessOrEqual(t, l0.MaxConnections, 12)
	assert.Greater(t, l0.AvgConnections, 1.0)
	assert.InDelta(t, float64(l0.Connections)/1000, l0.AvgConnections, 1e-9)
	for level := 1; level < len(st.Levels); level++ {
		assert.Less(t, st.Levels[level].Nodes, st.Levels[level-1].Nodes+1)
		assert.LessOrEqual(t, st.Levels[level].MaxConnections, 6)
	}
	assert.Contains(t, st.String(), "size=1000")

	assert.Equal(t, Stats{NumLevels: 1, EntryNode: -1, MaxConn: 6, Levels: []LevelStats{{}}}, GraphStats(NewOnHeapGraph(6, 0)))
}
