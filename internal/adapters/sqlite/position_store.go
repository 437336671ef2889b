package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/secondary"
)

const headerSep = "\x1f"

// PositionStores implements secondary.SubStores with SQLite.
type PositionStores struct {
	db *sql.DB
}

// NewPositionStores creates a new SQLite sub-store set.
func NewPositionStores(db *sql.DB) *PositionStores {
	return &PositionStores{db: db}
}

// Ensure creates the named sub-store when missing.
func (p *PositionStores) Ensure(ctx context.Context, name string, header []string) error {
	_, err := p.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO position_stores (name, header) VALUES (?, ?)",
		name, strings.Join(header, headerSep),
	)
	return classify("ensure position store "+name, err)
}

// Upsert replaces the copy with the same id, or appends.
func (p *PositionStores) Upsert(ctx context.Context, name string, row incident.Row) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin position upsert", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM position_stores WHERE name = ?", name).Scan(&exists); err != nil {
		return classify("check position store", err)
	}
	if exists == 0 {
		return fmt.Errorf("position store %s does not exist", name)
	}

	if id := strings.TrimSpace(row.Get(incident.ColID)); id != "" {
		assignments := make([]string, len(incident.Columns))
		for i, c := range incident.Columns {
			assignments[i] = string(c) + " = ?"
		}
		args := append(rowValues(row), name, id)
		res, err := tx.ExecContext(ctx,
			"UPDATE position_rows SET "+strings.Join(assignments, ", ")+" WHERE store = ? AND id = ?",
			args...,
		)
		if err != nil {
			return classify("update position row", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return classify("commit position upsert", tx.Commit())
		}
	}

	args := append([]any{name}, rowValues(row)...)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO position_rows (store, "+columnList+") VALUES (?, "+placeholders+")",
		args...,
	); err != nil {
		return classify("insert position row", err)
	}
	return classify("commit position upsert", tx.Commit())
}

// List returns the rows of the named sub-store in insertion order.
func (p *PositionStores) List(ctx context.Context, name string) ([]incident.Row, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT "+columnList+" FROM position_rows WHERE store = ? ORDER BY seq", name)
	if err != nil {
		return nil, classify("list position rows", err)
	}
	defer rows.Close()

	var out []incident.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Names lists the existing sub-stores.
func (p *PositionStores) Names(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT name FROM position_stores ORDER BY name")
	if err != nil {
		return nil, classify("list position stores", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan position store: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Ensure PositionStores implements the interface
var _ secondary.SubStores = (*PositionStores)(nil)
