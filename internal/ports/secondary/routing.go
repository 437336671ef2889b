package secondary

import "context"

// Routing attempt states.
const (
	RoutingPending   = "pending"
	RoutingDelivered = "delivered"
	RoutingAbandoned = "abandoned"
)

// RoutingOutbox defines the secondary port for failed routing attempts awaiting replay.
type RoutingOutbox interface {
	// Create persists a new attempt.
	Create(ctx context.Context, attempt *RoutingAttemptRecord) error

	// ListPending retrieves pending attempts, oldest first.
	ListPending(ctx context.Context, limit int) ([]*RoutingAttemptRecord, error)

	// List retrieves attempts in any state, newest first.
	List(ctx context.Context, status string, limit int) ([]*RoutingAttemptRecord, error)

	// MarkDelivered marks an attempt as replayed successfully.
	MarkDelivered(ctx context.Context, id string) error

	// MarkFailed records another failed try. The attempt is abandoned once
	// attempts reaches maxAttempts (0 means never).
	MarkFailed(ctx context.Context, id, lastError string, maxAttempts int) error
}

// RoutingAttemptRecord is one routing copy that did not land.
type RoutingAttemptRecord struct {
	ID          string
	IncidentKey string // Stable id or natural key string
	Position    string
	SubStore    string
	Attempts    int
	LastError   string
	Status      string
	CreatedAt   string
	UpdatedAt   string
}

// Notifier defines the secondary port for the chat/webhook notification sink.
type Notifier interface {
	// Notify delivers a plain-text message.
	Notify(ctx context.Context, text string) error
}
