package storage

import (
	"errors"
	"time"

	"github.com/wrenware/pulse/internal/embedding"
	"github.com/wrenware/pulse/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates the backing store cannot be reached. Category
	// searches treat this as recoverable: the category is skipped and
	// recorded in the context's debug counters.
	ErrUnavailable = errors.New("store unavailable")
)

// SearchOptions describes one owner-scoped vector search.
type SearchOptions struct {
	// OwnerID scopes the search; required. Results never cross owners.
	OwnerID string

	// Category restricts results to one metric type when non-empty.
	Category string

	// Vector is the query embedding.
	Vector []float32

	// Metric selects the distance function (default: cosine).
	Metric embedding.Metric

	// MaxDistance, when non-nil, drops results with a larger distance.
	// When nil only Limit bounds the result.
	MaxDistance *float64

	// After/Before bound the record date (inclusive) when non-zero,
	// conjunctive with the category filter.
	After  time.Time
	Before time.Time

	// Limit caps the number of results (default: 10, max: 100).
	Limit int
}

// Normalize applies defaults and validates the SearchOptions.
func (o *SearchOptions) Normalize() {
	if o.Metric == "" {
		o.Metric = embedding.MetricCosine
	}
	if o.Limit < 1 {
		o.Limit = 10
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
}

// ScoredRecord is one search hit with its computed distance
// (smaller is more similar, for every metric).
type ScoredRecord struct {
	Record   types.MetricRecord
	Distance float64
}
