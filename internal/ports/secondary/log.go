package secondary

import "context"

// LogWriter defines the interface for writing incident audit entries.
// Implementations extract the actor from context.
type LogWriter interface {
	// LogCreate logs the intake of an incident.
	LogCreate(ctx context.Context, incidentKey string) error

	// LogUpdate logs a change of one incident field.
	LogUpdate(ctx context.Context, incidentKey, fieldName, oldValue, newValue string) error
}

// IncidentLogRepository defines the secondary port for audit log persistence.
type IncidentLogRepository interface {
	// Create persists a new log entry.
	Create(ctx context.Context, log *IncidentLogRecord) error

	// List retrieves log entries matching the given filters, newest first.
	List(ctx context.Context, filters IncidentLogFilters) ([]*IncidentLogRecord, error)

	// PruneOlderThan deletes entries older than days and returns how many went.
	PruneOlderThan(ctx context.Context, days int) (int, error)
}

// IncidentLogRecord represents an audit entry as stored in persistence.
type IncidentLogRecord struct {
	ID          string
	Timestamp   string
	ActorID     string
	IncidentKey string
	Action      string // "create", "update"
	FieldName   string
	OldValue    string
	NewValue    string
}

// IncidentLogFilters contains filter options for querying audit entries.
type IncidentLogFilters struct {
	IncidentKey string
	ActorID     string
	Action      string
	Limit       int
}
