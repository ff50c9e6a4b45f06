package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineDistanceSelfIsZero(t *testing.T) {
	v := []float32{0.3, -0.5, 0.8}
	d, err := CosineDistance(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-6)
}

func TestCosineDistanceOrthogonal(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-6)
}

func TestCosineDistanceOpposite(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-6)
}

func TestCosineDistanceZeroVector(t *testing.T) {
	d, err := CosineDistance([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
}

func TestDistanceSymmetry(t *testing.T) {
	a := []float32{0.1, 0.9, -0.4}
	b := []float32{-0.7, 0.2, 0.5}

	for _, m := range []Metric{MetricCosine, MetricL2, MetricInner} {
		ab, err := Distance(m, a, b)
		require.NoError(t, err)
		ba, err := Distance(m, b, a)
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 1e-9, "metric %s", m)
	}
}

func TestDistanceDimensionMismatch(t *testing.T) {
	_, err := Distance(MetricCosine, []float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestInnerDistanceIsNegatedDot(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{3, 4}
	d, err := Distance(MetricInner, a, b)
	require.NoError(t, err)
	assert.InDelta(t, -11, d, 1e-6)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1, norm, 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, v, Normalize(v))
}

func TestMaxDistanceForSimilarity(t *testing.T) {
	assert.InDelta(t, 0.3, MaxDistanceForSimilarity(MetricCosine, 0.7), 1e-9)
	assert.InDelta(t, math.Sqrt(0.6), MaxDistanceForSimilarity(MetricL2, 0.7), 1e-9)
	assert.InDelta(t, -0.7, MaxDistanceForSimilarity(MetricInner, 0.7), 1e-9)
}
