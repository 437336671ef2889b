package primary

import (
	"context"

	"github.com/example/faultline/internal/core/incident"
)

// RoutingService defines the primary port for position sub-store copies.
type RoutingService interface {
	// Route copies rec into the sub-store of position. Failures are
	// recorded for replay and returned; they never undo a transition.
	Route(ctx context.Context, rec incident.Record, position string) error

	// Replay retries pending outbox entries.
	Replay(ctx context.Context, limit int) (*ReplayResponse, error)

	// Pending lists outbox entries awaiting replay.
	Pending(ctx context.Context, limit int) ([]*RoutingAttempt, error)
}

// ReplayResponse summarises a replay run.
type ReplayResponse struct {
	Delivered int
	Failed    int
	Abandoned int
}

// RoutingAttempt is an outbox entry at the port boundary.
type RoutingAttempt struct {
	ID          string
	IncidentKey string
	Position    string
	SubStore    string
	Attempts    int
	LastError   string
	Status      string
	CreatedAt   string
}
