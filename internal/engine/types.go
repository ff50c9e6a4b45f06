// Package engine assembles retrieval context for AI requests: the query is
// embedded once, relevant health metrics are gathered per category, the
// consolidated memory and recent insights are folded in, and the whole thing
// is rendered deterministically for prompt injection.
package engine

import (
	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// Request describes one context-assembly invocation.
type Request struct {
	// OwnerID scopes every lookup; required.
	OwnerID string

	// Query is the user's natural-language question.
	Query string

	// Categories restricts retrieval to the named metric types. Empty means
	// every category the owner has records for.
	Categories []string

	// TimeFrame bounds the metric date range. Unrecognized values fall back
	// to last_day.
	TimeFrame types.TimeFrame

	// Protocols are caller-supplied snapshots of active health protocols,
	// rendered into the context verbatim.
	Protocols []types.ProtocolSnapshot
}

// CategoryResult holds the qualifying metrics for one category.
type CategoryResult struct {
	Category string
	Records  []storage.ScoredRecord
}

// Context is the assembled retrieval context.
type Context struct {
	// Categories holds per-category results, sorted by category name.
	// Categories with zero qualifying records are omitted.
	Categories []CategoryResult

	// Memory is the rendered consolidated memory, empty when nothing
	// relevant was recalled.
	Memory string

	// MemorySimilarity is the cosine similarity of the recalled memory,
	// zero when Memory is empty.
	MemorySimilarity float64

	// Insights are the owner's most recent memory entries, newest first.
	Insights []types.MemoryEntry

	// Protocols are the caller-supplied snapshots, passed through.
	Protocols []types.ProtocolSnapshot

	// Debug carries retrieval diagnostics; it never affects rendering.
	Debug DebugInfo
}

// Empty reports whether the context has nothing to render besides the
// not-found marker.
func (c *Context) Empty() bool {
	return len(c.Categories) == 0 && c.Memory == "" &&
		len(c.Insights) == 0 && len(c.Protocols) == 0
}

// DebugInfo counts what happened during assembly.
type DebugInfo struct {
	// CategoriesSearched is the number of category searches attempted.
	CategoriesSearched int

	// CategoriesFailed counts searches that errored and were skipped.
	CategoriesFailed int

	// RecordsConsidered is the total number of qualifying records returned
	// across categories.
	RecordsConsidered int

	// MemoryRecalled reports whether the consolidated memory qualified.
	MemoryRecalled bool
}
