package history

// schemaSQL is the complete ledger schema. Statements are idempotent so the
// schema is applied on every Open.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS cycles (
	id TEXT PRIMARY KEY,
	stage TEXT NOT NULL,
	version INTEGER NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	success INTEGER NOT NULL,
	changed INTEGER NOT NULL,
	published_slot INTEGER
);

CREATE INDEX IF NOT EXISTS idx_cycles_finished ON cycles(finished_at);

CREATE TABLE IF NOT EXISTS tasks (
	cycle_id TEXT NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	changed INTEGER NOT NULL,
	revision_before TEXT NOT NULL DEFAULT '',
	revision_after TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (cycle_id, key)
);
`
