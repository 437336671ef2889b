package sqlite

import (
	"context"

	"github.com/example/faultline/internal/ctxutil"
	"github.com/example/faultline/internal/ports/secondary"
)

// LogWriterAdapter implements secondary.LogWriter using IncidentLogRepository.
type LogWriterAdapter struct {
	logRepo secondary.IncidentLogRepository
}

// NewLogWriterAdapter creates a new LogWriterAdapter.
func NewLogWriterAdapter(logRepo secondary.IncidentLogRepository) *LogWriterAdapter {
	return &LogWriterAdapter{logRepo: logRepo}
}

// LogCreate logs the intake of an incident.
func (w *LogWriterAdapter) LogCreate(ctx context.Context, incidentKey string) error {
	return w.writeLog(ctx, incidentKey, "create", "", "", "")
}

// LogUpdate logs a change of one incident field.
func (w *LogWriterAdapter) LogUpdate(ctx context.Context, incidentKey, fieldName, oldValue, newValue string) error {
	if oldValue == newValue {
		return nil
	}
	return w.writeLog(ctx, incidentKey, "update", fieldName, oldValue, newValue)
}

func (w *LogWriterAdapter) writeLog(ctx context.Context, incidentKey, action, fieldName, oldValue, newValue string) error {
	return w.logRepo.Create(ctx, &secondary.IncidentLogRecord{
		ActorID:     ctxutil.ActorOrSystem(ctx),
		IncidentKey: incidentKey,
		Action:      action,
		FieldName:   fieldName,
		OldValue:    oldValue,
		NewValue:    newValue,
	})
}

// Ensure LogWriterAdapter implements the interface
var _ secondary.LogWriter = (*LogWriterAdapter)(nil)
