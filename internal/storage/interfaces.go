// Package storage provides composable storage interfaces for the Pulse
// retrieval engine. The layer is split into small, focused interfaces that
// can be implemented independently and composed as needed; the SQLite and
// PostgreSQL backends each implement all of them.
package storage

import (
	"context"
	"time"

	"github.com/wrenware/pulse/pkg/types"
)

// RecordStore persists health metric records together with their
// embeddings and serves filtered vector search over them.
type RecordStore interface {
	// UpsertRecord creates or updates a record and its embedding.
	// Idempotent on record ID.
	UpsertRecord(ctx context.Context, rec *types.MetricRecord, vector []float32) error

	// GetRecord retrieves a record by owner and ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, ownerID, id string) (*types.MetricRecord, error)

	// SearchRecords performs an owner-scoped vector similarity search.
	// Results come back ascending by distance; zero matches yield an empty
	// slice, not an error.
	SearchRecords(ctx context.Context, opts SearchOptions) ([]ScoredRecord, error)

	// Categories lists the distinct metric types the owner has records for.
	Categories(ctx context.Context, ownerID string) ([]string, error)
}

// MemoryStore persists the single consolidated memory document per owner.
// Read-modify-write coordination happens one layer up (the memory service
// serializes appends per owner).
type MemoryStore interface {
	// GetMemory retrieves an owner's memory document.
	// Returns ErrNotFound when the owner has no memory yet.
	GetMemory(ctx context.Context, ownerID string) (*types.MemoryDocument, error)

	// PutMemory creates or replaces an owner's memory document, including
	// its entries and embedding, as one atomic write.
	PutMemory(ctx context.Context, doc *types.MemoryDocument) error
}

// CacheStore persists cached AI responses. Entries are immutable except for
// the expiry rewrite performed by InvalidateEntries.
type CacheStore interface {
	// GetFresh returns the entry for (owner, key) if it exists and is still
	// fresh at now. Returns ErrNotFound for both never-cached and expired;
	// callers cannot distinguish, by design.
	GetFresh(ctx context.Context, ownerID, key string, now time.Time) (*types.CacheEntry, error)

	// PutEntry stores a brand-new cache entry. A concurrent writer racing on
	// the same key must not corrupt either entry; last write wins.
	PutEntry(ctx context.Context, entry *types.CacheEntry) error

	// InvalidateEntries force-expires all fresh entries matching the owner
	// and the optional endpoint/timeFrame filters (empty string matches
	// all). The rewrite is a single statement so concurrent readers never
	// observe a partially invalidated set. Returns the number of entries
	// expired.
	InvalidateEntries(ctx context.Context, ownerID, endpoint, timeFrame string, now time.Time) (int, error)
}

// Store is the full storage backend contract.
type Store interface {
	RecordStore
	MemoryStore
	CacheStore

	// Close releases any resources held by the store.
	Close() error
}
