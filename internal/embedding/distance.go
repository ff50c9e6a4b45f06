package embedding

import (
	"fmt"
	"math"
)

// Metric names a distance function over embedding vectors.
type Metric string

const (
	// MetricCosine is cosine distance (1 - cosine similarity). Queries are
	// normalized to unit length before searching.
	MetricCosine Metric = "cosine"

	// MetricL2 is Euclidean distance.
	MetricL2 Metric = "l2"

	// MetricInner is negative inner product, so that smaller is more similar
	// for every metric.
	MetricInner Metric = "inner"
)

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricInner:
		return true
	}
	return false
}

// checkDims returns ErrDimensionMismatch when the two vectors disagree in
// length. Mixed-dimension vectors are a programmer error, never recovered.
func checkDims(a, b []float32) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return nil
}

// CosineDistance returns 1 - cosine similarity of a and b.
// A zero-magnitude vector yields the maximum distance of 1.
func CosineDistance(a, b []float32) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

// L2Distance returns the Euclidean distance between a and b.
func L2Distance(a, b []float32) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// DotProduct returns the inner product of a and b.
func DotProduct(a, b []float32) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

// Distance computes the named metric between a and b. For MetricInner the
// result is the negated dot product so that ascending order means most
// similar first under every metric.
func Distance(m Metric, a, b []float32) (float64, error) {
	switch m {
	case MetricL2:
		return L2Distance(a, b)
	case MetricInner:
		dot, err := DotProduct(a, b)
		if err != nil {
			return 0, err
		}
		return -dot, nil
	default:
		return CosineDistance(a, b)
	}
}

// Normalize scales v to unit L2 norm. When the norm is exactly zero the
// input is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// MaxDistanceForSimilarity converts a minimum cosine-similarity threshold
// (0..1) into the corresponding distance cutoff for the given metric.
// The L2 conversion assumes unit vectors, for which
// ||a-b||² = 2·(1 - cos(a,b)).
func MaxDistanceForSimilarity(m Metric, minSimilarity float64) float64 {
	switch m {
	case MetricL2:
		return math.Sqrt(2 * (1 - minSimilarity))
	case MetricInner:
		return -minSimilarity
	default:
		return 1 - minSimilarity
	}
}
