package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// GetMemory retrieves an owner's consolidated memory document.
func (s *Store) GetMemory(ctx context.Context, ownerID string) (*types.MemoryDocument, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT owner_id, entries, embedding, dimension, updated_at
		FROM ai_memories
		WHERE owner_id = ?`, ownerID)

	var doc types.MemoryDocument
	var entriesJSON string
	var blob []byte
	var dim int
	err := row.Scan(&doc.OwnerID, &entriesJSON, &blob, &dim, &doc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get memory: %w", err)
	}
	if err := json.Unmarshal([]byte(entriesJSON), &doc.Entries); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal memory entries: %w", err)
	}
	doc.Embedding, err = deserializeVector(blob, dim)
	if err != nil {
		return nil, fmt.Errorf("sqlite: decode memory embedding: %w", err)
	}
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
		return fmt.Errorf("sqlite: marshal memory entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_memories (owner_id, entries, embedding, dimension, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(owner_id) DO UPDATE SET
			entries = excluded.entries,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_at = CURRENT_TIMESTAMP`,
		doc.OwnerID, string(entriesJSON), serializeVector(doc.Embedding), s.dim)
	if err != nil {
		return fmt.Errorf("sqlite: put memory: %w", err)
	}
	return nil
}
