package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/faultline/internal/ports/secondary"
)

// RoutingOutboxRepository implements secondary.RoutingOutbox with SQLite.
type RoutingOutboxRepository struct {
	db *sql.DB
}

// NewRoutingOutboxRepository creates a new SQLite routing outbox.
func NewRoutingOutboxRepository(db *sql.DB) *RoutingOutboxRepository {
	return &RoutingOutboxRepository{db: db}
}

// Create persists a new attempt. An empty ID is assigned the next RT- number.
func (r *RoutingOutboxRepository) Create(ctx context.Context, a *secondary.RoutingAttemptRecord) error {
	if a.ID == "" {
		id, err := r.GetNextID(ctx)
		if err != nil {
			return err
		}
		a.ID = id
	}
	if a.Status == "" {
		a.Status = secondary.RoutingPending
	}
	if a.Attempts == 0 {
		a.Attempts = 1
	}

	var lastError sql.NullString
	if a.LastError != "" {
		lastError = sql.NullString{String: a.LastError, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO routing_outbox (id, incident_key, position, sub_store, attempts, last_error, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.IncidentKey, a.Position, a.SubStore, a.Attempts, lastError, a.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create routing attempt: %w", err)
	}
	return nil
}

// ListPending retrieves pending attempts, oldest first.
func (r *RoutingOutboxRepository) ListPending(ctx context.Context, limit int) ([]*secondary.RoutingAttemptRecord, error) {
	query := `SELECT id, incident_key, position, sub_store, attempts, last_error, status, created_at, updated_at FROM routing_outbox WHERE status = ? ORDER BY created_at, id`
	args := []any{secondary.RoutingPending}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// List retrieves attempts filtered by status (empty for all), newest first.
func (r *RoutingOutboxRepository) List(ctx context.Context, status string, limit int) ([]*secondary.RoutingAttemptRecord, error) {
	query := `SELECT id, incident_key, position, sub_store, attempts, last_error, status, created_at, updated_at FROM routing_outbox WHERE 1=1`
	args := []any{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *RoutingOutboxRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.RoutingAttemptRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list routing attempts: %w", err)
	}
	defer rows.Close()

	var out []*secondary.RoutingAttemptRecord
	for rows.Next() {
		var (
			lastError sql.NullString
			createdAt time.Time
			updatedAt time.Time
		)
		a := &secondary.RoutingAttemptRecord{}
		if err := rows.Scan(&a.ID, &a.IncidentKey, &a.Position, &a.SubStore, &a.Attempts, &lastError, &a.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan routing attempt: %w", err)
		}
		a.LastError = lastError.String
		a.CreatedAt = createdAt.Format(time.RFC3339)
		a.UpdatedAt = updatedAt.Format(time.RFC3339)
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkDelivered marks an attempt as replayed.
func (r *RoutingOutboxRepository) MarkDelivered(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE routing_outbox SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		secondary.RoutingDelivered, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark routing attempt delivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("routing attempt %s not found", id)
	}
	return nil
}

// MarkFailed bumps the attempt counter and abandons the entry at maxAttempts.
func (r *RoutingOutboxRepository) MarkFailed(ctx context.Context, id, lastError string, maxAttempts int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE routing_outbox
		 SET attempts = attempts + 1,
		     last_error = ?,
		     status = CASE WHEN ? > 0 AND attempts + 1 >= ? THEN 'abandoned' ELSE status END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		lastError, maxAttempts, maxAttempts, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark routing attempt failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("routing attempt %s not found", id)
	}
	return nil
}

// GetNextID returns the next available attempt ID.
func (r *RoutingOutboxRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("RT-") + 1
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM routing_outbox", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next routing attempt ID: %w", err)
	}
	return fmt.Sprintf("RT-%04d", maxID+1), nil
}

// Ensure RoutingOutboxRepository implements the interface
var _ secondary.RoutingOutbox = (*RoutingOutboxRepository)(nil)
