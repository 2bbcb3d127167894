package history

// Schema creates the comparisons table. Safe to apply repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS comparisons (
	id              TEXT PRIMARY KEY,
	page_url        TEXT NOT NULL,
	target          TEXT NOT NULL DEFAULT '',
	base_url        TEXT NOT NULL DEFAULT '',
	added           INTEGER NOT NULL DEFAULT 0,
	missing         INTEGER NOT NULL DEFAULT 0,
	compared        INTEGER NOT NULL DEFAULT 0,
	shell           INTEGER NOT NULL DEFAULT 0,
	reference_error TEXT NOT NULL DEFAULT '',
	rendered_error  TEXT NOT NULL DEFAULT '',
	reference_hash  TEXT NOT NULL DEFAULT '',
	rendered_hash   TEXT NOT NULL DEFAULT '',
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comparisons_created ON comparisons(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_comparisons_page ON comparisons(page_url, created_at DESC);
`
