// Package memory manages the consolidated AI memory document kept per owner.
// The document is an append-and-truncate log of discrete insights: new
// entries go on the end, and when the rendered document exceeds the size cap
// the oldest whole entries are dropped. Its embedding always covers the full
// rendered text.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wrenware/pulse/internal/embedding"
	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// DefaultMaxChars is the rendered-size cap for a memory document.
const DefaultMaxChars = 10_000

// Service coordinates reads and writes of owner memory documents. Appends
// for the same owner are serialized so concurrent read-modify-write cycles
// cannot lose entries.
type Service struct {
	store    storage.MemoryStore
	embedder *embedding.Generator
	maxChars int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a memory service. maxChars <= 0 selects DefaultMaxChars.
func NewService(store storage.MemoryStore, embedder *embedding.Generator, maxChars int) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("memory: store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder is required")
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Service{
		store:    store,
		embedder: embedder,
		maxChars: maxChars,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// ownerLock returns the append lock for one owner, creating it on first use.
func (s *Service) ownerLock(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.locks[ownerID]
	if l == nil {
		l = &sync.Mutex{}
		s.locks[ownerID] = l
	}
	return l
}

// Append adds one insight to the owner's memory document, truncates oldest
// entries while the rendered document exceeds the size cap, re-embeds the
// full rendered text, and persists the result. Returns the updated document.
//
// An insight larger than the cap on its own is rejected rather than stored
// truncated mid-sentence.
func (s *Service) Append(ctx context.Context, ownerID, content string, at time.Time) (*types.MemoryDocument, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", storage.ErrInvalidInput)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.store.GetMemory(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("memory: load document: %w", err)
		}
		doc = &types.MemoryDocument{OwnerID: ownerID}
	}

	doc.Entries = append(doc.Entries, types.MemoryEntry{Timestamp: at.UTC(), Content: content})

	// Drop whole entries, oldest first, until the rendered form fits. The
	// newest entry always survives unless it alone exceeds the cap.
	for doc.RenderedLen() > s.maxChars && len(doc.Entries) > 1 {
		doc.Entries = doc.Entries[1:]
	}
	if doc.RenderedLen() > s.maxChars {
		return nil, fmt.Errorf("%w: insight exceeds memory size cap (%d chars)",
			storage.ErrInvalidInput, s.maxChars)
	}

	vec, err := s.embedder.Embed(ctx, doc.Rendered())
	if err != nil {
		return nil, fmt.Errorf("memory: embed document: %w", err)
	}
	doc.Embedding = vec
	doc.UpdatedAt = at.UTC()

	if err := s.store.PutMemory(ctx, doc); err != nil {
		return nil, fmt.Errorf("memory: persist document: %w", err)
	}
	return doc, nil
}

// Recall returns the owner's memory document when its embedding is at least
// minSimilarity (cosine) close to the query vector. An owner without memory,
// or a memory that isn't relevant enough, yields (nil, 0, nil): absence is
// not an error.
func (s *Service) Recall(ctx context.Context, ownerID string, query []float32, minSimilarity float64) (*types.MemoryDocument, float64, error) {
	if ownerID == "" {
		return nil, 0, fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}

	doc, err := s.store.GetMemory(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("memory: load document: %w", err)
	}
	if len(doc.Entries) == 0 || len(doc.Embedding) == 0 {
		return nil, 0, nil
	}

	dist, err := embedding.Distance(embedding.MetricCosine, query, doc.Embedding)
	if err != nil {
		return nil, 0, fmt.Errorf("memory: score document: %w", err)
	}
	sim := 1 - dist
	if sim < minSimilarity {
		return nil, 0, nil
	}
	return doc, sim, nil
}

// Entries returns the owner's memory entries in chronological order, or an
// empty slice when no memory exists.
func (s *Service) Entries(ctx context.Context, ownerID string) ([]types.MemoryEntry, error) {
	doc, err := s.store.GetMemory(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []types.MemoryEntry{}, nil
		}
		return nil, fmt.Errorf("memory: load document: %w", err)
	}
	return doc.Entries, nil
}
