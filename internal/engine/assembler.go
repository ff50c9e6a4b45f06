package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wrenware/pulse/internal/embedding"
	"github.com/wrenware/pulse/internal/memory"
	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// Defaults for assembler tuning knobs.
const (
	DefaultMaxPerCategory      = 5
	DefaultSimilarityThreshold = 0.7
	DefaultMemoryMinSimilarity = 0.6
	DefaultMaxInsights         = 10
)

// Options tunes an Assembler. The zero value selects every default.
type Options struct {
	// MaxPerCategory caps results per category search.
	MaxPerCategory int

	// SimilarityThreshold is the minimum cosine similarity for a metric to
	// qualify, converted to a per-metric distance cutoff.
	SimilarityThreshold float64

	// MemoryMinSimilarity is the minimum cosine similarity for the
	// consolidated memory to be recalled.
	MemoryMinSimilarity float64

	// MaxInsights caps the most-recent insights folded into the context.
	MaxInsights int

	// Metric selects the distance function for metric searches.
	Metric embedding.Metric
}

// Normalize applies defaults.
func (o *Options) Normalize() {
	if o.MaxPerCategory <= 0 {
		o.MaxPerCategory = DefaultMaxPerCategory
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.MemoryMinSimilarity <= 0 {
		o.MemoryMinSimilarity = DefaultMemoryMinSimilarity
	}
	if o.MaxInsights <= 0 {
		o.MaxInsights = DefaultMaxInsights
	}
	if o.Metric == "" {
		o.Metric = embedding.MetricCosine
	}
}

// Assembler builds retrieval contexts. Safe for concurrent use.
type Assembler struct {
	records  storage.RecordStore
	memories *memory.Service
	embedder *embedding.Generator
	opts     Options

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewAssembler creates an Assembler over the given collaborators.
func NewAssembler(records storage.RecordStore, memories *memory.Service, embedder *embedding.Generator, opts Options) (*Assembler, error) {
	if records == nil {
		return nil, fmt.Errorf("engine: record store is required")
	}
	if memories == nil {
		return nil, fmt.Errorf("engine: memory service is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("engine: embedder is required")
	}
	opts.Normalize()
	return &Assembler{
		records:  records,
		memories: memories,
		embedder: embedder,
		opts:     opts,
		now:      time.Now,
	}, nil
}

// Assemble builds the retrieval context for one request. The query is
// embedded exactly once; category searches run concurrently and individual
// failures degrade to a smaller context rather than an error. Embedding
// failure aborts: no partial context is meaningful without the query vector.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Context, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", storage.ErrInvalidInput)
	}

	queryVec, err := a.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("engine: embed query: %w", err)
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories, err = a.records.Categories(ctx, req.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("engine: list categories: %w", err)
		}
	}

	out := &Context{Protocols: req.Protocols}
	out.Debug.CategoriesSearched = len(categories)

	after, before := req.TimeFrame.Window(a.now().UTC())
	maxDist := embedding.MaxDistanceForSimilarity(a.opts.Metric, a.opts.SimilarityThreshold)

	// Per-category searches are read-only and owner-scoped, so they fan out
	// concurrently. Each goroutine writes only its own slot.
	results := make([]*CategoryResult, len(categories))
	var failed atomic.Int32
	var wg sync.WaitGroup
	for i, cat := range categories {
		wg.Add(1)
		go func(i int, cat string) {
			defer wg.Done()
			scored, err := a.records.SearchRecords(ctx, storage.SearchOptions{
				OwnerID:     req.OwnerID,
				Category:    cat,
				Vector:      queryVec,
				Metric:      a.opts.Metric,
				MaxDistance: &maxDist,
				After:       after,
				Before:      before,
				Limit:       a.opts.MaxPerCategory,
			})
			if err != nil {
				log.Printf("engine: category %q search failed (skipping): %v", cat, err)
				failed.Add(1)
				return
			}
			if len(scored) > 0 {
				results[i] = &CategoryResult{Category: cat, Records: scored}
			}
		}(i, cat)
	}
	wg.Wait()

	out.Debug.CategoriesFailed = int(failed.Load())

	for _, r := range results {
		if r == nil {
			continue
		}
		out.Categories = append(out.Categories, *r)
		out.Debug.RecordsConsidered += len(r.Records)
	}
	// Render order is category-name order regardless of request order.
	sort.Slice(out.Categories, func(i, j int) bool {
		return out.Categories[i].Category < out.Categories[j].Category
	})

	// Memory recall failing is recoverable: the metric sections still stand.
	doc, sim, err := a.memories.Recall(ctx, req.OwnerID, queryVec, a.opts.MemoryMinSimilarity)
	if err != nil {
		log.Printf("engine: memory recall failed (skipping): %v", err)
	} else if doc != nil {
		out.Memory = doc.Rendered()
		out.MemorySimilarity = sim
		out.Debug.MemoryRecalled = true
	}

	entries, err := a.memories.Entries(ctx, req.OwnerID)
	if err != nil {
		log.Printf("engine: insight lookup failed (skipping): %v", err)
	} else {
		out.Insights = recentInsights(entries, a.opts.MaxInsights)
	}

	return out, nil
}

// recentInsights returns up to max entries, newest first.
func recentInsights(entries []types.MemoryEntry, max int) []types.MemoryEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]types.MemoryEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > max {
		out = out[:max]
	}
	return out
}
