package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-5)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 27, SquaredL2([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-5)
	assert.InDelta(t, 0, SquaredL2([]float32{1, 2}, []float32{1, 2}), 1e-5)
}

func TestMetricCompare(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	t.Run("Euclidean", func(t *testing.T) {
		assert.InDelta(t, 1.0, Euclidean.Compare(a, a), 1e-6)
		assert.InDelta(t, 1.0/3.0, Euclidean.Compare(a, b), 1e-6)
	})

	t.Run("DotProduct", func(t *testing.T) {
		assert.InDelta(t, 1.0, DotProduct.Compare(a, a), 1e-6)
		assert.InDelta(t, 0.5, DotProduct.Compare(a, b), 1e-6)
		assert.InDelta(t, 0.0, DotProduct.Compare(a, []float32{-1, 0}), 1e-6)
	})

	t.Run("Cosine", func(t *testing.T) {
		assert.InDelta(t, 1.0, Cosine.Compare([]float32{2, 0}, a), 1e-6)
		assert.InDelta(t, 0.5, Cosine.Compare(a, b), 1e-6)
		assert.InDelta(t, 0.5, Cosine.Compare(a, []float32{0, 0}), 1e-6)
	})

	t.Run("MaximumInnerProduct", func(t *testing.T) {
		assert.InDelta(t, 5.0, MaximumInnerProduct.Compare([]float32{2, 0}, []float32{2, 0}), 1e-6)
		assert.InDelta(t, 0.2, MaximumInnerProduct.Compare([]float32{2, 0}, []float32{-2, 0}), 1e-6)
	})

	t.Run("HigherIsCloser", func(t *testing.T) {
		q := []float32{0, 0}
		near := []float32{1, 1}
		far := []float32{5, 5}
		assert.Greater(t, Euclidean.Compare(q, near), Euclidean.Compare(q, far))
	})
}

func TestParseMetric(t *testing.T) {
	for _, m := range []Metric{Euclidean, DotProduct, Cosine, MaximumInnerProduct} {
		got, err := ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseMetric(" L2 ")
	require.NoError(t, err)
	assert.Equal(t, Euclidean, got)

	_, err = ParseMetric("hamming")
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	v, ok := NormalizeL2Copy([]float32{0, 3, 4})
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0, 0.6, 0.8}, v, 1e-6)

	_, ok = NormalizeL2Copy([]float32{0, 0})
	assert.False(t, ok)
	assert.False(t, NormalizeL2InPlace(nil))
}
