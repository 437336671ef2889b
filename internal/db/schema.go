package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Tests load it
// through GetSchemaSQL() instead of declaring their own tables.
//
// incident_rows and position_rows mirror the workbook layout: one TEXT
// column per incident.Column, in incident.Columns order, plus bookkeeping.
const SchemaSQL = `
-- Shared incident log (one row per report)
CREATE TABLE IF NOT EXISTS incident_rows (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	priority TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT '',
	reporter TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	equipment TEXT NOT NULL DEFAULT '',
	sub_equipment TEXT NOT NULL DEFAULT '',
	fault_type TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	routed_position TEXT NOT NULL DEFAULT '',
	inspector TEXT NOT NULL DEFAULT '',
	completed_at TEXT NOT NULL DEFAULT '',
	resolution_notes TEXT NOT NULL DEFAULT '',
	stage TEXT NOT NULL DEFAULT '',
	remarks TEXT NOT NULL DEFAULT '',
	closed TEXT NOT NULL DEFAULT '',
	id TEXT NOT NULL DEFAULT '',
	row_version INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_incident_rows_id ON incident_rows(id);
CREATE INDEX IF NOT EXISTS idx_incident_rows_natural ON incident_rows(reporter, equipment);

-- Position sub-stores
CREATE TABLE IF NOT EXISTS position_stores (
	name TEXT PRIMARY KEY,
	header TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS position_rows (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	store TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT '',
	reporter TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	equipment TEXT NOT NULL DEFAULT '',
	sub_equipment TEXT NOT NULL DEFAULT '',
	fault_type TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	routed_position TEXT NOT NULL DEFAULT '',
	inspector TEXT NOT NULL DEFAULT '',
	completed_at TEXT NOT NULL DEFAULT '',
	resolution_notes TEXT NOT NULL DEFAULT '',
	stage TEXT NOT NULL DEFAULT '',
	remarks TEXT NOT NULL DEFAULT '',
	closed TEXT NOT NULL DEFAULT '',
	id TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (store) REFERENCES position_stores(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_position_rows_store ON position_rows(store, id);

-- Routing outbox (failed position copies awaiting replay)
CREATE TABLE IF NOT EXISTS routing_outbox (
	id TEXT PRIMARY KEY,
	incident_key TEXT NOT NULL,
	position TEXT NOT NULL,
	sub_store TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 1,
	last_error TEXT,
	status TEXT NOT NULL CHECK(status IN ('pending', 'delivered', 'abandoned')) DEFAULT 'pending',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_routing_outbox_status ON routing_outbox(status);

-- Incident audit trail
CREATE TABLE IF NOT EXISTS incident_logs (
	id TEXT PRIMARY KEY,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	actor_id TEXT,
	incident_key TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'update')),
	field_name TEXT,
	old_value TEXT,
	new_value TEXT
);

CREATE INDEX IF NOT EXISTS idx_incident_logs_key ON incident_logs(incident_key);
CREATE INDEX IF NOT EXISTS idx_incident_logs_timestamp ON incident_logs(timestamp);
`

// InitSchema creates the database schema on a fresh database and runs
// pending migrations on an existing one.
func InitSchema(conn *sql.DB) error {
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	var tableCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(conn)
	}

	// Fresh install: create the modern schema and mark every migration applied
	if _, err := conn.Exec(SchemaSQL); err != nil {
		return err
	}
	if err := createVersionTable(conn); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := conn.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
