// Package index provides an in-process approximate-nearest-neighbor vector
// index with owner scoping, category and date-range filters, and distance
// thresholds. Small per-owner corpora are served by an exact scan; larger
// ones by a per-owner HNSW graph so query cost does not grow linearly with
// corpus size.
//
// The index holds id + vector + filterable fields only; it never owns the
// record body.
package index

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wrenware/pulse/internal/embedding"
)

// Record is the slice of a stored record that the index retains.
type Record struct {
	ID       string
	OwnerID  string
	Category string

	// Timestamp is the record's observation time, used by date-range filters.
	Timestamp time.Time

	// Metadata carries extra filterable fields (exact match, conjunctive).
	Metadata map[string]string

	// Vector is the record's embedding. Length must equal the index dimension.
	Vector []float32
}

// Query describes one owner-scoped similarity search.
type Query struct {
	// OwnerID scopes the search; required. Results never cross owners.
	OwnerID string

	// Category restricts results to one category tag when non-empty.
	Category string

	// Vector is the query embedding. For cosine searches it is normalized
	// before use.
	Vector []float32

	// Metric selects the distance function (default cosine).
	Metric embedding.Metric

	// MaxDistance, when non-nil, drops results with a larger distance.
	MaxDistance *float64

	// After/Before bound the record timestamp (inclusive) when non-zero.
	After  time.Time
	Before time.Time

	// Metadata filters require exact matches on record metadata, ANDed
	// together with the other filters.
	Metadata map[string]string

	// Limit caps the number of results (default 10).
	Limit int
}

// Result is one search hit with its computed distance.
type Result struct {
	Record   Record
	Distance float64
}

// annThreshold is the per-owner corpus size at which the index switches
// from exact scanning to the HNSW graph.
const annThreshold = 256

// annSeed keeps graph construction deterministic across process restarts
// so recall behavior is reproducible.
const annSeed = 0x9E3779B9

// Index is an in-memory vector index partitioned by owner. Safe for
// concurrent use; reads proceed in parallel, writes are serialized.
type Index struct {
	mu     sync.RWMutex
	dim    int
	owners map[string]*ownerShard
}

type ownerShard struct {
	records    map[string]Record
	normalized map[string][]float32 // unit-length copies, cosine space
	graph      *hnswGraph           // nil until the shard crosses annThreshold
}

// New creates an index for vectors of the given dimension.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	return &Index{dim: dim, owners: make(map[string]*ownerShard)}, nil
}

// Len returns the total number of indexed records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, shard := range ix.owners {
		n += len(shard.records)
	}
	return n
}

// Upsert inserts or replaces a record's vector. Idempotent on ID: inserting
// the same record twice leaves one entry.
func (ix *Index) Upsert(rec Record) error {
	if rec.ID == "" || rec.OwnerID == "" {
		return fmt.Errorf("index: record id and owner id are required")
	}
	if len(rec.Vector) != ix.dim {
		return fmt.Errorf("%w: record %s has %d components, index wants %d",
			embedding.ErrDimensionMismatch, rec.ID, len(rec.Vector), ix.dim)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	shard := ix.owners[rec.OwnerID]
	if shard == nil {
		shard = &ownerShard{
			records:    make(map[string]Record),
			normalized: make(map[string][]float32),
		}
		ix.owners[rec.OwnerID] = shard
	}

	shard.records[rec.ID] = rec
	shard.normalized[rec.ID] = embedding.Normalize(rec.Vector)

	if shard.graph != nil {
		shard.graph.Insert(rec.ID, shard.normalized[rec.ID])
		ix.maybeRebuild(shard)
	} else if len(shard.records) >= annThreshold {
		ix.buildGraph(shard)
	}

	return nil
}

// Remove deletes a record from the index. Removing an unknown id is a no-op.
func (ix *Index) Remove(ownerID, id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	shard := ix.owners[ownerID]
	if shard == nil {
		return
	}
	if _, ok := shard.records[id]; !ok {
		return
	}
	delete(shard.records, id)
	delete(shard.normalized, id)
	if shard.graph != nil {
		if nid, ok := shard.graph.byKey[id]; ok {
			shard.graph.nodes[nid].deleted = true
			shard.graph.tombstones++
			delete(shard.graph.byKey, id)
		}
		ix.maybeRebuild(shard)
	}
}

// buildGraph constructs the HNSW graph from the shard's current contents.
func (ix *Index) buildGraph(shard *ownerShard) {
	g := newHNSWGraph(16, 64, 64, annSeed)
	for id, vec := range shard.normalized {
		g.Insert(id, vec)
	}
	shard.graph = g
}

// maybeRebuild recreates the graph once tombstones outnumber live nodes.
func (ix *Index) maybeRebuild(shard *ownerShard) {
	if shard.graph != nil && shard.graph.tombstones > shard.graph.Len() {
		ix.buildGraph(shard)
	}
}

// Search returns records matching the query's filters, ascending by
// distance, bounded by Limit and MaxDistance. An owner or filter set that
// matches nothing yields an empty slice, not an error.
func (ix *Index) Search(q Query) ([]Result, error) {
	if q.OwnerID == "" {
		return nil, fmt.Errorf("index: owner id is required")
	}
	if len(q.Vector) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d components, index wants %d",
			embedding.ErrDimensionMismatch, len(q.Vector), ix.dim)
	}
	if q.Metric == "" {
		q.Metric = embedding.MetricCosine
	}
	if !q.Metric.Valid() {
		return nil, fmt.Errorf("index: unknown distance metric %q", q.Metric)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	shard := ix.owners[q.OwnerID]
	if shard == nil {
		return []Result{}, nil
	}

	// ANN acceleration applies to cosine queries, the default metric.
	// Other metrics and small corpora take the exact path.
	if q.Metric == embedding.MetricCosine && shard.graph != nil {
		if res, ok := ix.searchANN(shard, q); ok {
			return res, nil
		}
	}
	return ix.searchExact(shard, q), nil
}

// searchANN queries the shard's graph with oversampling to absorb filter
// misses. When filtering starves the candidate set below the requested
// limit it reports !ok so the caller falls back to the exact scan; an
// approximate index must not silently under-report filtered corpora.
func (ix *Index) searchANN(shard *ownerShard, q Query) ([]Result, bool) {
	query := embedding.Normalize(q.Vector)

	oversample := q.Limit*8 + 32
	if oversample > len(shard.records) {
		oversample = len(shard.records)
	}

	candidates := shard.graph.Search(query, oversample, oversample)

	results := make([]Result, 0, q.Limit)
	for _, c := range candidates {
		rec, ok := shard.records[c.key]
		if !ok || !matches(rec, q) {
			continue
		}
		if q.MaxDistance != nil && c.dist > *q.MaxDistance {
			// Candidates are ascending; everything after is farther.
			break
		}
		results = append(results, Result{Record: rec, Distance: c.dist})
		if len(results) == q.Limit {
			return results, true
		}
	}

	// Short results are trustworthy only when the beam covered the whole
	// shard or the distance cutoff fired.
	if len(candidates) == len(shard.records) || (q.MaxDistance != nil && len(results) > 0) {
		return results, true
	}
	return nil, false
}

// searchExact scans the shard, which is cheap below annThreshold and the
// correctness fallback above it.
func (ix *Index) searchExact(shard *ownerShard, q Query) []Result {
	query := q.Vector
	if q.Metric == embedding.MetricCosine {
		query = embedding.Normalize(query)
	}

	results := make([]Result, 0, q.Limit)
	for _, rec := range shard.records {
		if !matches(rec, q) {
			continue
		}
		var d float64
		if q.Metric == embedding.MetricCosine {
			d = cosDist(query, shard.normalized[rec.ID])
		} else {
			d, _ = embedding.Distance(q.Metric, query, rec.Vector)
		}
		if q.MaxDistance != nil && d > *q.MaxDistance {
			continue
		}
		results = append(results, Result{Record: rec, Distance: d})
	}

	// Ties break on ID so identical corpora always return identical orders.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Record.ID < results[j].Record.ID
	})

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results
}

// matches applies the conjunctive filters: category, date range, metadata.
// Owner scoping already happened via shard selection.
func matches(rec Record, q Query) bool {
	if q.Category != "" && rec.Category != q.Category {
		return false
	}
	if !q.After.IsZero() && rec.Timestamp.Before(q.After) {
		return false
	}
	if !q.Before.IsZero() && rec.Timestamp.After(q.Before) {
		return false
	}
	for k, v := range q.Metadata {
		if rec.Metadata[k] != v {
			return false
		}
	}
	return true
}
