// Package sqlite implements the storage backend on modernc.org/sqlite.
// Vector search is served by the in-process ANN index (internal/index),
// which is populated from the embeddings stored alongside each row.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wrenware/pulse/internal/index"
	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// Ensure *Store implements the full backend contract at compile time.
var _ storage.Store = (*Store)(nil)

// indexLoadMaxRows caps the number of embeddings loaded into the ANN index
// at startup, newest rows first. For typical per-user health datasets this
// limit is never hit; larger deployments should run the PostgreSQL backend,
// where pgvector does the indexing.
const indexLoadMaxRows = 100_000

// Store is the SQLite-backed implementation of storage.Store.
type Store struct {
	db  *sql.DB
	idx *index.Index
	dim int
}

// NewStore opens (or creates) the database at path, applies the schema, and
// warms the ANN index from the stored embeddings. Use ":memory:" for an
// ephemeral store.
func NewStore(path string, dim int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	idx, err := index.New(dim)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, idx: idx, dim: dim}
	if err := s.loadIndex(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// loadIndex rebuilds the in-process ANN index from stored rows.
func (s *Store) loadIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, metric_type, source, date, embedding, dimension
		FROM health_metrics
		ORDER BY created_at DESC
		LIMIT ?`, indexLoadMaxRows)
	if err != nil {
		return fmt.Errorf("sqlite: load embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	loaded := 0
	for rows.Next() {
		var id, ownerID, metricType, source string
		var date time.Time
		var blob []byte
		var dim int
		if err := rows.Scan(&id, &ownerID, &metricType, &source, &date, &blob, &dim); err != nil {
			return fmt.Errorf("sqlite: scan embedding row: %w", err)
		}
		vec, err := deserializeVector(blob, dim)
		if err != nil {
			// A malformed row shouldn't block startup; skip it.
			log.Printf("sqlite: skipping record %s: %v", id, err)
			continue
		}
		if err := s.idx.Upsert(index.Record{
			ID:        id,
			OwnerID:   ownerID,
			Category:  metricType,
			Timestamp: date,
			Metadata:  map[string]string{"source": source},
			Vector:    vec,
		}); err != nil {
			log.Printf("sqlite: skipping record %s: %v", id, err)
			continue
		}
		loaded++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterate embedding rows: %w", err)
	}

	if loaded > 0 {
		log.Printf("sqlite: loaded %d embeddings into the vector index", loaded)
	}
	return nil
}

// UpsertRecord creates or updates a record and its embedding. Idempotent on ID.
func (s *Store) UpsertRecord(ctx context.Context, rec *types.MetricRecord, vector []float32) error {
	if rec == nil || rec.ID == "" || rec.OwnerID == "" {
		return fmt.Errorf("%w: record id and owner id are required", storage.ErrInvalidInput)
	}
	if len(vector) != s.dim {
		return fmt.Errorf("%w: embedding length (%d) does not match dimension (%d)",
			storage.ErrInvalidInput, len(vector), s.dim)
	}

	valueJSON, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metric value: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO health_metrics (id, owner_id, metric_type, source, date, value, embedding, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			metric_type = excluded.metric_type,
			source = excluded.source,
			date = excluded.date,
			value = excluded.value,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_at = CURRENT_TIMESTAMP`,
		rec.ID, rec.OwnerID, rec.MetricType, rec.Source, rec.Date.UTC(),
		string(valueJSON), serializeVector(vector), s.dim)
	if err != nil {
		return fmt.Errorf("sqlite: upsert record: %w", err)
	}

	return s.idx.Upsert(index.Record{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Category:  rec.MetricType,
		Timestamp: rec.Date.UTC(),
		Metadata:  map[string]string{"source": rec.Source},
		Vector:    vector,
	})
}

// GetRecord retrieves a record by owner and ID.
func (s *Store) GetRecord(ctx context.Context, ownerID, id string) (*types.MetricRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, metric_type, source, date, value, created_at, updated_at
		FROM health_metrics
		WHERE owner_id = ? AND id = ?`, ownerID, id)

	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get record %s: %w", id, err)
	}
	return rec, nil
}

// SearchRecords performs vector similarity search via the in-process index
// and hydrates matches from the database.
func (s *Store) SearchRecords(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredRecord, error) {
	opts.Normalize()
	if opts.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}

	hits, err := s.idx.Search(index.Query{
		OwnerID:     opts.OwnerID,
		Category:    opts.Category,
		Vector:      opts.Vector,
		Metric:      opts.Metric,
		MaxDistance: opts.MaxDistance,
		After:       opts.After,
		Before:      opts.Before,
		Limit:       opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: vector search: %w", err)
	}

	results := make([]storage.ScoredRecord, 0, len(hits))
	for _, hit := range hits {
		rec, err := s.GetRecord(ctx, opts.OwnerID, hit.Record.ID)
		if err != nil {
			// Row deleted since the index was built; skip it.
			continue
		}
		results = append(results, storage.ScoredRecord{Record: *rec, Distance: hit.Distance})
	}
	return results, nil
}

// Categories lists the distinct metric types the owner has records for.
func (s *Store) Categories(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT metric_type FROM health_metrics
		WHERE owner_id = ?
		ORDER BY metric_type`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("sqlite: scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate categories: %w", err)
	}
	return cats, nil
}

// scanRecord reads one record row. The column order must match the SELECT
// in GetRecord.
func scanRecord(row *sql.Row) (*types.MetricRecord, error) {
	var rec types.MetricRecord
	var valueJSON string
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.MetricType, &rec.Source,
		&rec.Date, &valueJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(valueJSON), &rec.Value); err != nil {
		return nil, fmt.Errorf("unmarshal metric value: %w", err)
	}
	return &rec, nil
}

// serializeVector converts a float32 slice to little-endian bytes.
func serializeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts little-endian bytes back to a float32 slice.
// dimension validates the buffer size.
func deserializeVector(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
