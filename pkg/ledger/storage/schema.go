package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the block and audit tables.
const Schema = `
-- Blocks table. Rows are never deleted; lifting a block flips active.
CREATE TABLE IF NOT EXISTS acs_blocks (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    severity TEXT NOT NULL,
    scope TEXT,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    audit_id TEXT,
    active BOOLEAN NOT NULL,
    expires_at TIMESTAMP,
    unblocked_by TEXT,
    unblocked_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_blocks_entity
    ON acs_blocks(entity_type, entity_id, active);

CREATE INDEX IF NOT EXISTS idx_blocks_expiry
    ON acs_blocks(active, expires_at);

-- Audit chain. Append-only; (stream, seq) is dense per stream.
CREATE TABLE IF NOT EXISTS acs_audit (
    id TEXT PRIMARY KEY,
    stream TEXT NOT NULL,
    seq INTEGER NOT NULL,
    source TEXT NOT NULL,
    kind TEXT NOT NULL,
    event TEXT,
    rule_id TEXT,
    rule_version TEXT,
    actor TEXT,
    created_at TIMESTAMP NOT NULL,
    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL,
    signer TEXT,
    UNIQUE(stream, seq)
);

CREATE INDEX IF NOT EXISTS idx_audit_stream
    ON acs_audit(stream, seq);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT OR IGNORE INTO schema_version (version) VALUES (?);
`

// GetSchemaVersion reads the recorded schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
