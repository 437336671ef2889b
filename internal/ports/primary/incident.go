package primary

import (
	"context"
	"time"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/core/rollup"
)

// IncidentService defines the primary port for incident lifecycle operations.
type IncidentService interface {
	// Intake files a new incident as Pending and returns its stable id.
	Intake(ctx context.Context, req incident.IntakeRequest) (*IntakeResponse, error)

	// List returns the current working set. Rows with unparsable creation
	// dates are dropped and counted in the response.
	List(ctx context.Context, filter rollup.Filter) (*ListResponse, error)

	// Get returns the single record addressed by key.
	Get(ctx context.Context, key incident.MatchKey) (*incident.Record, error)

	// Start moves an incident to InProgress (or reassigns its inspector).
	Start(ctx context.Context, req StartRequest) (*TransitionResponse, error)

	// Complete moves an InProgress incident to Done.
	Complete(ctx context.Context, req CompleteRequest) (*TransitionResponse, error)

	// QuickComplete runs Start without routing followed by Complete.
	QuickComplete(ctx context.Context, req QuickCompleteRequest) (*TransitionResponse, error)

	// Reopen moves a Done incident back to InProgress when allowed.
	Reopen(ctx context.Context, req ReopenRequest) (*TransitionResponse, error)

	// RecentOpen returns open incidents of a position, newest first.
	RecentOpen(ctx context.Context, position string, limit int) ([]incident.Record, error)

	// CompletedHistory returns completed or closed incidents, newest first.
	CompletedHistory(ctx context.Context, filter rollup.Filter) ([]incident.Record, error)

	// Daily returns the intakes and completions of the Seoul calendar day of at.
	Daily(ctx context.Context, at time.Time) (*DailyReport, error)

	// BackfillIDs assigns stable ids to legacy rows whose natural key is unique.
	BackfillIDs(ctx context.Context, dryRun bool) (*BackfillResponse, error)
}

// IntakeResponse contains the result of filing an incident.
type IntakeResponse struct {
	Record incident.Record
}

// ListResponse contains the working set and parse diagnostics.
type ListResponse struct {
	Records []incident.Record
	Dropped int // Rows excluded because their creation date could not be parsed
}

// StartRequest contains parameters for starting work on an incident.
type StartRequest struct {
	Key             incident.MatchKey
	Inspector       string
	RoutedPosition  string // Optional
	RetryOnConflict bool
}

// CompleteRequest contains parameters for completing an incident.
type CompleteRequest struct {
	Key             incident.MatchKey
	ResolutionNotes *string
	RetryOnConflict bool
}

// QuickCompleteRequest contains parameters for the one-step close.
type QuickCompleteRequest struct {
	Key             incident.MatchKey
	Inspector       string
	ResolutionNotes *string
	RetryOnConflict bool
}

// ReopenRequest contains parameters for reopening an incident.
type ReopenRequest struct {
	Key       incident.MatchKey
	Inspector string
	Reason    string
}

// TransitionResponse contains the result of a lifecycle transition.
type TransitionResponse struct {
	Record         incident.Record // State after the transition
	From           incident.Status
	To             incident.Status
	Retried        bool  // A conflict was retried once against a fresh read
	RoutingFailure error // Non-nil when the position copy did not land
}

// DailyReport lists the activity of one day.
type DailyReport struct {
	Day       time.Time
	Received  []incident.Record
	Completed []incident.Record
}

// BackfillResponse summarises a backfill run.
type BackfillResponse struct {
	Assigned  []BackfillAssignment
	Ambiguous []incident.NaturalKey // Left as legacy rows
	Failed    int
}

// BackfillAssignment is one id written to a legacy row.
type BackfillAssignment struct {
	Key incident.NaturalKey
	ID  string
}
