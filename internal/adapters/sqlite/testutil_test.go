// Package sqlite_test contains integration tests for the SQLite adapters.
//
// Every test database is built from db.GetSchemaSQL(); do not declare
// tables in test files.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// A single connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// pendingRow returns a Pending row; id may be empty for a legacy row.
func pendingRow(id, reporter, equipment, description string) incident.Row {
	return incident.Row{
		incident.ColID:          id,
		incident.ColPriority:    incident.RawNormal,
		incident.ColCreatedAt:   "2025. 10. 20 오후 3:05:39",
		incident.ColReporter:    reporter,
		incident.ColPosition:    "RACE",
		incident.ColLocation:    "트랙",
		incident.ColEquipment:   equipment,
		incident.ColDescription: description,
		incident.ColStatus:      incident.RawPending,
	}
}
