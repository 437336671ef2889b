package primary

import "context"

// LogService defines the primary port for the incident audit trail.
type LogService interface {
	// ListLogs retrieves log entries matching the given filters.
	ListLogs(ctx context.Context, filters LogFilters) ([]*LogEntry, error)

	// PruneLogs deletes log entries older than the specified number of days.
	PruneLogs(ctx context.Context, olderThanDays int) (int, error)
}

// LogEntry represents an audit entry at the port boundary.
type LogEntry struct {
	ID          string
	Timestamp   string
	ActorID     string
	IncidentKey string
	Action      string // 'create', 'update'
	FieldName   string // For updates only
	OldValue    string
	NewValue    string
}

// LogFilters contains filter options for querying logs.
type LogFilters struct {
	IncidentKey string
	ActorID     string
	Action      string
	Limit       int
}
