package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/faultline/internal/ports/secondary"
)

// IncidentLogRepository implements secondary.IncidentLogRepository with SQLite.
type IncidentLogRepository struct {
	db *sql.DB
}

// NewIncidentLogRepository creates a new SQLite audit log repository.
func NewIncidentLogRepository(db *sql.DB) *IncidentLogRepository {
	return &IncidentLogRepository{db: db}
}

// Create persists a new audit entry. An empty ID is assigned the next IL- number.
func (r *IncidentLogRepository) Create(ctx context.Context, log *secondary.IncidentLogRecord) error {
	if log.ID == "" {
		id, err := r.GetNextID(ctx)
		if err != nil {
			return err
		}
		log.ID = id
	}

	var actorID, fieldName, oldValue, newValue sql.NullString
	if log.ActorID != "" {
		actorID = sql.NullString{String: log.ActorID, Valid: true}
	}
	if log.FieldName != "" {
		fieldName = sql.NullString{String: log.FieldName, Valid: true}
	}
	if log.OldValue != "" {
		oldValue = sql.NullString{String: log.OldValue, Valid: true}
	}
	if log.NewValue != "" {
		newValue = sql.NullString{String: log.NewValue, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incident_logs (id, actor_id, incident_key, action, field_name, old_value, new_value) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		actorID,
		log.IncidentKey,
		log.Action,
		fieldName,
		oldValue,
		newValue,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident log: %w", err)
	}

	return nil
}

// List retrieves log entries matching the given filters.
func (r *IncidentLogRepository) List(ctx context.Context, filters secondary.IncidentLogFilters) ([]*secondary.IncidentLogRecord, error) {
	query := `SELECT id, timestamp, actor_id, incident_key, action, field_name, old_value, new_value FROM incident_logs WHERE 1=1`
	args := []any{}

	if filters.IncidentKey != "" {
		query += " AND incident_key = ?"
		args = append(args, filters.IncidentKey)
	}

	if filters.ActorID != "" {
		query += " AND actor_id = ?"
		args = append(args, filters.ActorID)
	}

	if filters.Action != "" {
		query += " AND action = ?"
		args = append(args, filters.Action)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident logs: %w", err)
	}
	defer rows.Close()

	var logs []*secondary.IncidentLogRecord
	for rows.Next() {
		var (
			actorID   sql.NullString
			fieldName sql.NullString
			oldValue  sql.NullString
			newValue  sql.NullString
			timestamp time.Time
		)

		record := &secondary.IncidentLogRecord{}
		err := rows.Scan(&record.ID,
			&timestamp,
			&actorID,
			&record.IncidentKey,
			&record.Action,
			&fieldName,
			&oldValue,
			&newValue)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident log: %w", err)
		}
		record.Timestamp = timestamp.Format(time.RFC3339)
		record.ActorID = actorID.String
		record.FieldName = fieldName.String
		record.OldValue = oldValue.String
		record.NewValue = newValue.String

		logs = append(logs, record)
	}

	return logs, rows.Err()
}

// GetNextID returns the next available log ID.
func (r *IncidentLogRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("IL-") + 1
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM incident_logs", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next incident log ID: %w", err)
	}

	return fmt.Sprintf("IL-%04d", maxID+1), nil
}

// PruneOlderThan deletes log entries older than the given number of days.
func (r *IncidentLogRepository) PruneOlderThan(ctx context.Context, days int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM incident_logs WHERE timestamp < datetime('now', ?)",
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune incident logs: %w", err)
	}

	count, _ := result.RowsAffected()
	return int(count), nil
}

// Ensure IncidentLogRepository implements the interface
var _ secondary.IncidentLogRepository = (*IncidentLogRepository)(nil)
