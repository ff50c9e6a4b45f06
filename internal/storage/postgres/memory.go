package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// GetMemory retrieves an owner's consolidated memory document.
func (s *Store) GetMemory(ctx context.Context, ownerID string) (*types.MemoryDocument, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT owner_id, entries, embedding, updated_at
		FROM ai_memories
		WHERE owner_id = $1`, ownerID)

	var doc types.MemoryDocument
	var entriesJSON []byte
	var vec pgvector.Vector
	err := row.Scan(&doc.OwnerID, &entriesJSON, &vec, &doc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get memory: %w", err)
	}
	if err := json.Unmarshal(entriesJSON, &doc.Entries); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal memory entries: %w", err)
	}
	doc.Embedding = vec.Slice()
	return &doc, nil
}

// PutMemory creates or replaces an owner's memory document as one write.
func (s *Store) PutMemory(ctx context.Context, doc *types.MemoryDocument) error {
	if doc == nil || doc.OwnerID == "" {
		return fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}
	if len(doc.Embedding) != s.dim {
		return fmt.Errorf("%w: embedding length (%d) does not match dimension (%d)",
			storage.ErrInvalidInput, len(doc.Embedding), s.dim)
	}

	entriesJSON, err := json.Marshal(doc.Entries)
	if err != nil {
		return fmt.Errorf("postgres: marshal memory entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_memories (owner_id, entries, embedding, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner_id) DO UPDATE SET
			entries = EXCLUDED.entries,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()`,
		doc.OwnerID, string(entriesJSON), pgvector.NewVector(doc.Embedding))
	if err != nil {
		return fmt.Errorf("postgres: put memory: %w", err)
	}
	return nil
}
