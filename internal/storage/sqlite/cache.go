package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// GetFresh returns the entry for (owner, key) if it is still fresh at now.
// Expired and never-cached both come back as ErrNotFound.
func (s *Store) GetFresh(ctx context.Context, ownerID, key string, now time.Time) (*types.CacheEntry, error) {
	if ownerID == "" || key == "" {
		return nil, fmt.Errorf("%w: owner id and key are required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, endpoint, time_frame, query_hash, payload, created_at, expires_at
		FROM ai_cached_responses
		WHERE owner_id = ? AND query_hash = ? AND expires_at > ?`,
		ownerID, key, now.UTC())

	var e types.CacheEntry
	err := row.Scan(&e.ID, &e.OwnerID, &e.Endpoint, &e.TimeFrame, &e.Key,
		&e.Payload, &e.CreatedAt, &e.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get cached response: %w", err)
	}
	return &e, nil
}

// PutEntry stores a cache entry, replacing any previous entry with the same
// (owner, key). Last write wins.
func (s *Store) PutEntry(ctx context.Context, entry *types.CacheEntry) error {
	if entry == nil || entry.OwnerID == "" || entry.Key == "" {
		return fmt.Errorf("%w: owner id and key are required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_cached_responses (id, owner_id, endpoint, time_frame, query_hash, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, query_hash) DO UPDATE SET
			id = excluded.id,
			endpoint = excluded.endpoint,
			time_frame = excluded.time_frame,
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		entry.ID, entry.OwnerID, entry.Endpoint, entry.TimeFrame, entry.Key,
		entry.Payload, entry.CreatedAt.UTC(), entry.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: put cached response: %w", err)
	}
	return nil
}

// InvalidateEntries force-expires fresh entries matching the owner and the
// optional endpoint/timeFrame filters. Runs as one UPDATE so readers never
// observe a half-invalidated set.
func (s *Store) InvalidateEntries(ctx context.Context, ownerID, endpoint, timeFrame string, now time.Time) (int, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ai_cached_responses
		SET expires_at = ?
		WHERE owner_id = ?
			AND (? = '' OR endpoint = ?)
			AND (? = '' OR time_frame = ?)
			AND expires_at > ?`,
		now.UTC(), ownerID, endpoint, endpoint, timeFrame, timeFrame, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: invalidate cached responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: invalidate cached responses: %w", err)
	}
	return int(n), nil
}
