package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/secondary"
)

// IncidentStore implements secondary.IncidentStore with SQLite.
type IncidentStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIncidentStore creates a new SQLite incident store.
func NewIncidentStore(db *sql.DB, logger *zap.Logger) *IncidentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncidentStore{db: db, logger: logger}
}

// ListAll returns every row in insertion order.
func (s *IncidentStore) ListAll(ctx context.Context) ([]incident.Row, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+columnList+" FROM incident_rows ORDER BY seq")
	if err != nil {
		return nil, classify("list incidents", err)
	}
	defer rows.Close()

	var out []incident.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list incidents", err)
	}
	return out, nil
}

// AppendRow inserts one row.
func (s *IncidentStore) AppendRow(ctx context.Context, row incident.Row) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO incident_rows ("+columnList+") VALUES ("+placeholders+")",
		rowValues(row)...,
	)
	return classify("append incident", err)
}

// UpdateFields applies req inside one transaction. The row is located again,
// its precondition checked and the update pinned to the row version read.
func (s *IncidentStore) UpdateFields(ctx context.Context, req secondary.UpdateRequest) error {
	if req.Key.IsZero() {
		return fmt.Errorf("%w: empty key", secondary.ErrNotFound)
	}
	for _, w := range req.Set {
		if !knownColumns[w.Column] {
			return fmt.Errorf("unknown column %q", w.Column)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin update", err)
	}
	defer tx.Rollback()

	seq, version, row, err := s.locate(ctx, tx, req.Key)
	if err != nil {
		return err
	}

	if !req.Expect.Matches(row) {
		s.logger.Info("update precondition failed",
			zap.String("incident", req.Key.String()),
			zap.String("status", row.Get(incident.ColStatus)),
			zap.String("inspector", row.Get(incident.ColInspector)))
		return fmt.Errorf("%w: %s", secondary.ErrConflict, req.Key)
	}

	if len(req.Set) > 0 {
		// Later writes to the same column win, as if applied in order.
		final := map[incident.Column]string{}
		var order []incident.Column
		for _, w := range req.Set {
			if _, seen := final[w.Column]; !seen {
				order = append(order, w.Column)
			}
			final[w.Column] = w.Value
		}

		assignments := make([]string, 0, len(order)+1)
		args := make([]any, 0, len(order)+2)
		for _, c := range order {
			assignments = append(assignments, string(c)+" = ?")
			args = append(args, final[c])
		}
		assignments = append(assignments, "row_version = row_version + 1")
		args = append(args, seq, version)

		res, err := tx.ExecContext(ctx,
			"UPDATE incident_rows SET "+strings.Join(assignments, ", ")+" WHERE seq = ? AND row_version = ?",
			args...,
		)
		if err != nil {
			return classify("update incident", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", secondary.ErrConflict, req.Key)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("commit update", err)
	}
	return nil
}

// locate re-resolves key against current rows.
func (s *IncidentStore) locate(ctx context.Context, tx *sql.Tx, key incident.MatchKey) (int64, int64, incident.Row, error) {
	var (
		query string
		args  []any
	)
	if id := strings.TrimSpace(key.ID); id != "" {
		query = "SELECT seq, row_version, " + columnList + " FROM incident_rows WHERE TRIM(id) = ?"
		args = []any{id}
	} else {
		query = "SELECT seq, row_version, " + columnList + " FROM incident_rows WHERE TRIM(reporter) = ? AND TRIM(equipment) = ?"
		args = []any{strings.TrimSpace(key.Natural.Reporter), strings.TrimSpace(key.Natural.Equipment)}
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, 0, nil, classify("locate incident", err)
	}
	defer rows.Close()

	type hit struct {
		seq, version int64
		row          incident.Row
	}
	var hits []hit
	for rows.Next() {
		var h hit
		row, err := scanRow(rows, &h.seq, &h.version)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		if key.Matches(row) {
			h.row = row
			hits = append(hits, h)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, nil, classify("locate incident", err)
	}

	switch len(hits) {
	case 0:
		return 0, 0, nil, fmt.Errorf("%w: %s", secondary.ErrNotFound, key)
	case 1:
		return hits[0].seq, hits[0].version, hits[0].row, nil
	default:
		return 0, 0, nil, secondary.AmbiguousKey(key, len(hits))
	}
}

// Ensure IncidentStore implements the interface
var _ secondary.IncidentStore = (*IncidentStore)(nil)
