package sqlite

// Schema is the complete DDL for the SQLite backend. Embeddings live next
// to their rows as little-endian float32 BLOBs; similarity search runs in
// process against the shared ANN index, which is rebuilt from these rows at
// startup.
const Schema = `
CREATE TABLE IF NOT EXISTS health_metrics (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	metric_type  TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	date         TIMESTAMP NOT NULL,
	value        TEXT NOT NULL,
	embedding    BLOB NOT NULL,
	dimension    INTEGER NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_health_metrics_owner_type
	ON health_metrics(owner_id, metric_type);

CREATE INDEX IF NOT EXISTS idx_health_metrics_owner_date
	ON health_metrics(owner_id, date);

CREATE TABLE IF NOT EXISTS ai_memories (
	owner_id    TEXT PRIMARY KEY,
	entries     TEXT NOT NULL,
	embedding   BLOB NOT NULL,
	dimension   INTEGER NOT NULL,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ai_cached_responses (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	time_frame  TEXT NOT NULL,
	query_hash  TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at  TIMESTAMP NOT NULL,
	UNIQUE(owner_id, query_hash)
);

CREATE INDEX IF NOT EXISTS idx_cached_responses_owner
	ON ai_cached_responses(owner_id, endpoint, time_frame);
`
