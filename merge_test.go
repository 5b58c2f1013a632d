package hnswgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/hnsw"
	"github.com/hupe1980/hnswgraph/testutil"
)

func TestIndex_MergeFrom(t *testing.T) {
	ctx := context.Background()

	for _, workers := range []int{1, 3} {
		rng := testutil.NewRNG(21)
		va := rng.UnitVectors(300, 8)
		vb := rng.UnitVectors(200, 8)
		vc := rng.UnitVectors(50, 8)

		metrics := &BasicMetricsCollector{}
		a := newBuiltIndex(t, va, WithWorkers(workers), WithMetricsCollector(metrics))
		b := newBuiltIndex(t, vb)

		// c has no graph; its vectors are inserted
		c, err := New(8)
		require.NoError(t, err)
		_, err = c.Add(vc...)
		require.NoError(t, err)

		bases, err := a.MergeFrom(ctx, b, c)
		require.NoError(t, err)
		assert.Equal(t, []int{300, 500}, bases)
		assert.Equal(t, 550, a.Len())
		assert.Equal(t, 550, a.Graph().Size())
		assert.Equal(t, 0, a.Stats().Pending)

		stats := metrics.GetStats()
		assert.Equal(t, int64(1), stats.MergeCount)
		assert.Equal(t, int64(300), stats.MergeInitialized)

		for _, j := range []int{0, 57, 199} {
			r, err := a.KNNSearch(ctx, vb[j], 1)
			require.NoError(t, err)
			assert.Equal(t, 300+j, r[0].ID, "workers %d", workers)
		}
		for _, j := range []int{3, 49} {
			r, err := a.KNNSearch(ctx, vc[j], 1)
			require.NoError(t, err)
			assert.Equal(t, 500+j, r[0].ID, "workers %d", workers)
		}

		// the sources are untouched
		assert.Equal(t, 200, b.Len())
		assert.Equal(t, 200, b.Graph().Size())
		assert.Nil(t, c.Graph())
	}
}

func TestIndex_MergeFrom_LargestGraphSeeds(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(22)

	metrics := &BasicMetricsCollector{}
	a := newBuiltIndex(t, rng.UnitVectors(40, 4), WithMetricsCollector(metrics))
	b := newBuiltIndex(t, rng.UnitVectors(120, 4))

	_, err := a.MergeFrom(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(120), metrics.GetStats().MergeInitialized)
	assert.True(t, hnsw.IsRooted(a.Graph()))
}

func TestIndex_MergeFrom_KeepsOwnM(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(23)
	vb := rng.UnitVectors(120, 4)

	metrics := &BasicMetricsCollector{}
	a := newBuiltIndex(t, rng.UnitVectors(40, 4), WithMetricsCollector(metrics), func(o *Options) { o.M = 6 })
	b := newBuiltIndex(t, vb, func(o *Options) { o.M = 12 })

	_, err := a.MergeFrom(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 6, a.Graph().MaxConn())
	assert.Equal(t, 160, a.Graph().Size())
	// a's own graph seeds the merge, b's graph is skipped
	assert.Equal(t, int64(40), metrics.GetStats().MergeInitialized)
	assert.True(t, hnsw.IsRooted(a.Graph()))

	r, err := a.KNNSearch(ctx, vb[7], 1)
	require.NoError(t, err)
	assert.Equal(t, 47, r[0].ID)
}

func TestIndex_MergeFrom_Incompatible(t *testing.T) {
	ctx := context.Background()
	a := newBuiltIndex(t, lineVectors(10))

	other, err := New(2)
	require.NoError(t, err)
	_, err = a.MergeFrom(ctx, other)
	require.ErrorIs(t, err, ErrIncompatibleIndex)

	cosine, err := New(1, WithMetric(distance.Cosine))
	require.NoError(t, err)
	_, err = a.MergeFrom(ctx, cosine)
	require.ErrorIs(t, err, ErrIncompatibleIndex)

	_, err = a.MergeFrom(ctx, a)
	require.ErrorIs(t, err, ErrIncompatibleIndex)

	assert.Equal(t, 10, a.Len())
}
