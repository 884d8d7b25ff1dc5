package sqlite

const schemaVersionV1 = 1

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS traces (
	instance_id  TEXT PRIMARY KEY,
	flow_id      TEXT NOT NULL,
	flow_version TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	error_kind   TEXT NOT NULL DEFAULT '',
	final_node   TEXT NOT NULL DEFAULT '',
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	data         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traces_flow ON traces(flow_id, flow_version);

CREATE TABLE IF NOT EXISTS assessments (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	instance_id      TEXT NOT NULL,
	flow_id          TEXT NOT NULL,
	node_id          TEXT NOT NULL,
	level            TEXT NOT NULL,
	recommended_path TEXT,
	rationale        TEXT,
	provider         TEXT,
	recorded_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_instance ON assessments(instance_id);

CREATE TABLE IF NOT EXISTS flows (
	flow_id    TEXT NOT NULL,
	version    TEXT NOT NULL,
	format     TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (flow_id, version)
);
`
