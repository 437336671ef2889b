package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_incident_and_position_rows",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_routing_outbox_and_incident_logs",
		Up:      migrationV2,
	},
}

func createVersionTable(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations
func RunMigrations(conn *sql.DB) error {
	if err := createVersionTable(conn); err != nil {
		return err
	}

	var currentVersion int
	err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// migrationV1 creates the row tables of the first release
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
	`)
	return err
}

// migrationV2 adds the routing outbox and the audit trail
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
	`)
	return err
}
