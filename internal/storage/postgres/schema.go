package postgres

import "fmt"

// schemaDDL is the base DDL for the PostgreSQL backend. The embedding
// columns are added separately because their declared dimension comes from
// configuration.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS health_metrics (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	metric_type  TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	date         TIMESTAMPTZ NOT NULL,
	value        JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_health_metrics_owner_type
	ON health_metrics(owner_id, metric_type);

CREATE INDEX IF NOT EXISTS idx_health_metrics_owner_date
	ON health_metrics(owner_id, date);

CREATE TABLE IF NOT EXISTS ai_memories (
	owner_id    TEXT PRIMARY KEY,
	entries     JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ai_cached_responses (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	time_frame  TEXT NOT NULL,
	query_hash  TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at  TIMESTAMPTZ NOT NULL,
	UNIQUE(owner_id, query_hash)
);

CREATE INDEX IF NOT EXISTS idx_cached_responses_owner
	ON ai_cached_responses(owner_id, endpoint, time_frame);
`

// vectorDDL adds the pgvector embedding columns and the HNSW index. Applied
// only after CREATE EXTENSION vector succeeds. The dimension is interpolated
// from an integer, never from user input.
func vectorDDL(dim int) string {
	return fmt.Sprintf(`
ALTER TABLE health_metrics ADD COLUMN IF NOT EXISTS embedding vector(%d);
ALTER TABLE ai_memories ADD COLUMN IF NOT EXISTS embedding vector(%d);

CREATE INDEX IF NOT EXISTS idx_health_metrics_embedding
	ON health_metrics USING hnsw (embedding vector_cosine_ops)
	WITH (m = 16, ef_construction = 64);
`, dim, dim)
}
