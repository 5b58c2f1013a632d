package queue

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		node  int
		score float32
	}{
		{0, 0},
		{1, -1},
		{42, 0.5},
		{math.MaxInt32, 3.25},
		{7, float32(math.Inf(1))},
		{9, float32(math.Inf(-1))},
		{3, -0.0001},
	} {
		k := Encode(tc.node, tc.score)
		assert.Equal(t, tc.node, DecodeNode(k))
		assert.Equal(t, tc.score, DecodeScore(k))
	}
}

func TestEncodeOrdering(t *testing.T) {
	scores := []float32{-3, -0.5, -0, 0, 0.25, 1, 100}
	for i := 1; i < len(scores); i++ {
		assert.LessOrEqual(t, Encode(0, scores[i-1]), Encode(0, scores[i]))
	}
	// equal scores: smaller node id ranks higher
	assert.Greater(t, Encode(1, 0.5), Encode(2, 0.5))
}

func TestMaxHeapPopsBestFirst(t *testing.T) {
	q := New(4, true)
	q.Add(1, 0.2)
	q.Add(2, 0.9)
	q.Add(3, 0.5)
	q.Add(4, 0.7)
	q.Add(5, 0.1)

	assert.Equal(t, 5, q.Size())
	assert.Equal(t, 2, q.TopNode())
	assert.InDelta(t, 0.9, q.TopScore(), 1e-7)

	var got []int
	for q.Size() > 0 {
		got = append(got, q.Pop())
	}
	assert.Equal(t, []int{2, 4, 3, 1, 5}, got)
}

func TestMinHeapPopsWorstFirst(t *testing.T) {
	q := New(4, false)
	q.Add(1, 0.2)
	q.Add(2, 0.9)
	q.Add(3, 0.5)

	assert.Equal(t, 1, q.TopNode())
	var got []int
	for q.Size() > 0 {
		got = append(got, q.Pop())
	}
	assert.Equal(t, []int{1, 3, 2}, got)
}

func TestTiesPreferSmallerNode(t *testing.T) {
	t.Run("max heap", func(t *testing.T) {
		q := New(8, true)
		for _, n := range []int{9, 3, 7, 1, 5} {
			q.Add(n, 1)
		}
		var got []int
		for q.Size() > 0 {
			got = append(got, q.Pop())
		}
		assert.Equal(t, []int{1, 3, 5, 7, 9}, got)
	})

	t.Run("min heap", func(t *testing.T) {
		q := New(8, false)
		for _, n := range []int{9, 3, 7, 1, 5} {
			q.Add(n, 1)
		}
		var got []int
		for q.Size() > 0 {
			got = append(got, q.Pop())
		}
		// worst first, so the smaller ids survive longest
		assert.Equal(t, []int{9, 7, 5, 3, 1}, got)
	})

	t.Run("overflow keeps smaller node", func(t *testing.T) {
		q := New(2, false)
		require.True(t, q.InsertWithOverflow(4, 1))
		require.True(t, q.InsertWithOverflow(6, 1))
		assert.True(t, q.InsertWithOverflow(2, 1))
		assert.False(t, q.InsertWithOverflow(8, 1))
		nodes := q.Nodes()
		sort.Ints(nodes)
		assert.Equal(t, []int{2, 4}, nodes)
	})
}

func TestInsertWithOverflow(t *testing.T) {
	q := New(3, false)
	for i, s := range []float32{0.5, 0.1, 0.9} {
		require.True(t, q.InsertWithOverflow(i, s))
	}
	assert.False(t, q.InsertWithOverflow(10, 0.05))
	assert.True(t, q.InsertWithOverflow(11, 0.6))
	assert.Equal(t, 3, q.Size())
	assert.InDelta(t, 0.5, q.TopScore(), 1e-7)

	nodes := q.Nodes()
	sort.Ints(nodes)
	assert.Equal(t, []int{0, 2, 11}, nodes)
}

func TestAddGrowsPastInitialSize(t *testing.T) {
	q := New(1, true)
	for i := 0; i < 100; i++ {
		q.Add(i, float32(i))
	}
	assert.Equal(t, 100, q.Size())
	assert.Equal(t, 1, q.MaxSize())
	assert.Equal(t, 99, q.Pop())
}

func TestClearAndFlags(t *testing.T) {
	q := New(2, true)
	q.Add(1, 1)
	q.SetVisitedCount(12)
	q.MarkIncomplete()
	assert.True(t, q.Incomplete())
	assert.Equal(t, 12, q.VisitedCount())

	q.Clear()
	assert.Equal(t, 0, q.Size())
	assert.False(t, q.Incomplete())
	assert.Equal(t, 0, q.VisitedCount())
	assert.True(t, q.MaxHeap())
}

func TestPopEmptyPanics(t *testing.T) {
	q := New(1, true)
	assert.Panics(t, func() { q.Pop() })
}
