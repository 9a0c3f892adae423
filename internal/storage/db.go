// Package storage is the SQLite-backed durable store for PULSAR SENTINEL:
// the ASR append-only log and batch index, the key registry, per-agent
// threat counters and rate windows, nonces, and the admin
// quorum's operator/endorsement records.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to a SQLite database holding every table the
// core needs. It follows the reference codebase's own single-file-per-domain
// migration style: one embedded schema, applied idempotently on open.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) a SQLite database at path and runs schema migrations.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: ping db: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: enable foreign keys: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection is alive, for use by liveness probes.
func (d *DB) Ping() error {
	return d.db.Ping()
}

func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS keys (
    key_id        TEXT PRIMARY KEY,
    level         INTEGER NOT NULL,
    public_key    BLOB NOT NULL,
    sealed_secret BLOB NOT NULL,
    kek_salt      BLOB NOT NULL,
    created_at    INTEGER NOT NULL,
    stale         INTEGER NOT NULL DEFAULT 0,
    rotated_to    TEXT,
    rotated_at    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS recovery_keys (
    id          TEXT PRIMARY KEY,
    key_id      TEXT NOT NULL,
    hex_key     TEXT NOT NULL,
    mnemonic    TEXT NOT NULL,
    escrow_blob BLOB NOT NULL,
    created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
    agent_id      TEXT PRIMARY KEY,
    role          TEXT NOT NULL DEFAULT 'none',
    tier          TEXT NOT NULL DEFAULT 'legacy_builder',
    strike_count  INTEGER NOT NULL DEFAULT 0,
    last_activity INTEGER NOT NULL DEFAULT 0,
    heir_address  TEXT,
    revoked       INTEGER NOT NULL DEFAULT 0,
    last_asr_ts   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS asr_records (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    asr_id       TEXT UNIQUE NOT NULL,
    timestamp_ms INTEGER NOT NULL,
    agent_id     TEXT NOT NULL,
    action       TEXT NOT NULL,
    threat_level INTEGER NOT NULL,
    pqc_status   TEXT NOT NULL,
    metadata     TEXT NOT NULL,
    signature    TEXT NOT NULL,
    batch_id     TEXT
);
CREATE INDEX IF NOT EXISTS idx_asr_agent_ts ON asr_records(agent_id, timestamp_ms, asr_id);
CREATE INDEX IF NOT EXISTS idx_asr_batch ON asr_records(batch_id);

CREATE TABLE IF NOT EXISTS asr_batches (
    batch_id      TEXT PRIMARY KEY,
    opened_at     INTEGER NOT NULL,
    closed_at     INTEGER,
    root          TEXT,
    record_count  INTEGER NOT NULL DEFAULT 0,
    anchor_state  TEXT NOT NULL DEFAULT 'pending',
    anchor_tx     TEXT,
    anchor_height INTEGER,
    fail_reason   TEXT
);

CREATE TABLE IF NOT EXISTS asr_proofs (
    asr_id     TEXT PRIMARY KEY,
    batch_id   TEXT NOT NULL,
    leaf_index INTEGER NOT NULL,
    path_json  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS threat_events (
    agent_id TEXT NOT NULL,
    kind     TEXT NOT NULL,
    ts_ms    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_threat_agent_kind_ts ON threat_events(agent_id, kind, ts_ms);

CREATE TABLE IF NOT EXISTS rate_windows (
    agent_id      TEXT NOT NULL,
    minute_bucket INTEGER NOT NULL,
    count         INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (agent_id, minute_bucket)
);

CREATE TABLE IF NOT EXISTS nonces (
    nonce      TEXT PRIMARY KEY,
    agent_id   TEXT NOT NULL,
    message    TEXT NOT NULL,
    issued_at  INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    used       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_nonces_agent ON nonces(agent_id);

CREATE TABLE IF NOT EXISTS admin_operators (
    operator_id    TEXT PRIMARY KEY,
    public_key     BLOB NOT NULL,
    label          TEXT NOT NULL,
    reputation     REAL NOT NULL DEFAULT 1.0,
    revoked        INTEGER NOT NULL DEFAULT 0,
    last_signed_at INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS admin_endorsements (
    id                 TEXT PRIMARY KEY,
    action_id          TEXT NOT NULL,
    endorser_id        TEXT NOT NULL,
    signature          TEXT NOT NULL,
    created_at         INTEGER NOT NULL,
    UNIQUE(action_id, endorser_id)
);

CREATE TABLE IF NOT EXISTS admin_actions (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    payload     TEXT NOT NULL,
    quorum_met  INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    applied_at  INTEGER
);

CREATE TABLE IF NOT EXISTS anomaly_logs (
    id           TEXT PRIMARY KEY,
    agent_id     TEXT NOT NULL,
    type         TEXT NOT NULL,
    evidence     TEXT NOT NULL,
    action_taken TEXT,
    created_at   INTEGER NOT NULL
);
`
	_, err := d.db.Exec(schema)
	return err
}
