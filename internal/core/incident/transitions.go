package incident

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/effects"
)

// ErrInvalidTransition is returned for any transition outside the state machine.
var ErrInvalidTransition = errors.New("invalid transition")

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Transition names a lifecycle operation.
type Transition string

const (
	TransitionStart    Transition = "start"
	TransitionComplete Transition = "complete"
	TransitionReopen   Transition = "reopen"
)

// TransitionPlan is everything the shell needs to apply one transition.
// Writes always end with the status column so a partially applied plan never
// shows the new status without its accompanying fields.
type TransitionPlan struct {
	Transition Transition
	Key        MatchKey
	From       Status
	To         Status
	Expect     Precondition
	Writes     []FieldWrite
	After      Record // Projected record once all writes land
	Effects    []effects.Effect
}

// StartRequest carries the inputs of Pending -> InProgress.
type StartRequest struct {
	Inspector      string
	RoutedPosition string // Optional position sub-store to copy the record into
}

// CompleteRequest carries the inputs of InProgress -> Done.
// ResolutionNotes must be set explicitly; an empty string is allowed.
type CompleteRequest struct {
	ResolutionNotes *string
}

// ReopenRequest carries the inputs of the gated Done -> InProgress edge.
type ReopenRequest struct {
	Inspector string // Optional; keeps the previous inspector when empty
	Reason    string
}

// CanStart evaluates whether rec may enter (or be reassigned within) InProgress.
// Rules:
// - Inspector must be non-empty
// - Status must be Pending, or InProgress for a reassignment
func CanStart(rec Record, req StartRequest) GuardResult {
	if strings.TrimSpace(req.Inspector) == "" {
		return deny("inspector is required to start incident %s", rec.Key())
	}
	switch rec.Status {
	case StatusPending, StatusInProgress:
		return allow()
	}
	return deny("cannot start incident %s from status %s", rec.Key(), describe(rec))
}

// CanComplete evaluates whether rec may move to Done.
// Rules:
// - Status must be InProgress
// - Resolution notes must be provided explicitly
func CanComplete(rec Record, req CompleteRequest) GuardResult {
	if rec.Status != StatusInProgress {
		return deny("cannot complete incident %s from status %s", rec.Key(), describe(rec))
	}
	if req.ResolutionNotes == nil {
		return deny("resolution notes must be provided to complete incident %s", rec.Key())
	}
	return allow()
}

// CanReopen evaluates whether a finished record may go back to InProgress.
// Rules:
// - Status must be Done
// - A reason is required
// - An inspector must be known (given or already on the record)
func CanReopen(rec Record, req ReopenRequest) GuardResult {
	if rec.Status != StatusDone {
		return deny("cannot reopen incident %s from status %s", rec.Key(), describe(rec))
	}
	if strings.TrimSpace(req.Reason) == "" {
		return deny("a reason is required to reopen incident %s", rec.Key())
	}
	if strings.TrimSpace(req.Inspector) == "" && strings.TrimSpace(rec.Inspector) == "" {
		return deny("inspector is required to reopen incident %s", rec.Key())
	}
	return allow()
}

func describe(rec Record) string {
	if rec.Status == StatusUnknown {
		return fmt.Sprintf("unknown (%q)", rec.RawStatus)
	}
	return string(rec.Status)
}

func invalid(g GuardResult) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, g.Reason)
}

// expectCurrent pins the row to the values the plan was computed from.
func expectCurrent(rec Record) Precondition {
	p := Precondition{
		ColStatus: {rec.RawStatus},
	}
	if rec.Status.Known() {
		p[ColStatus] = RawVariants(rec.Status)
	}
	p[ColInspector] = []string{rec.Inspector}
	return p
}

// PlanStart computes the writes of Pending -> InProgress.
func PlanStart(rec Record, req StartRequest) (TransitionPlan, error) {
	if g := CanStart(rec, req); !g.Allowed {
		return TransitionPlan{}, invalid(g)
	}

	inspector := strings.TrimSpace(req.Inspector)
	routed := strings.TrimSpace(req.RoutedPosition)

	after := rec
	after.Status = StatusInProgress
	after.RawStatus = RawInProgress
	after.Inspector = inspector
	after.Stage = StageRegistered

	writes := []FieldWrite{
		{Column: ColInspector, Value: inspector},
		{Column: ColStage, Value: StageRegistered},
	}
	if routed != "" {
		after.RoutedPosition = routed
		writes = append(writes, FieldWrite{Column: ColRoutedPosition, Value: routed})
	}
	writes = append(writes, FieldWrite{Column: ColStatus, Value: RawInProgress})

	plan := TransitionPlan{
		Transition: TransitionStart,
		Key:        rec.Key(),
		From:       rec.Status,
		To:         StatusInProgress,
		Expect:     expectCurrent(rec),
		Writes:     writes,
		After:      after,
	}

	if rec.Status == StatusInProgress && rec.Inspector != inspector {
		plan.Effects = append(plan.Effects, effects.LogEffect{
			Level:   "info",
			Message: "inspector reassigned",
			Fields:  map[string]any{"incident": rec.Key().String(), "from": rec.Inspector, "to": inspector},
		})
	}
	if routed != "" {
		plan.Effects = append(plan.Effects, effects.RouteEffect{
			Position:   routed,
			IncidentID: rec.Key().String(),
		})
	}
	return plan, nil
}

// PlanComplete computes the writes of InProgress -> Done.
// The caller passes the current time to enable testing.
func PlanComplete(rec Record, req CompleteRequest, now time.Time) (TransitionPlan, error) {
	if g := CanComplete(rec, req); !g.Allowed {
		return TransitionPlan{}, invalid(g)
	}

	completed := now.In(datetime.Seoul())
	notes := *req.ResolutionNotes

	after := rec
	after.Status = StatusDone
	after.RawStatus = RawDone
	after.CompletedAt = &completed
	after.ResolutionNotes = notes
	after.Stage = StageHandled
	after.Closed = true

	return TransitionPlan{
		Transition: TransitionComplete,
		Key:        rec.Key(),
		From:       rec.Status,
		To:         StatusDone,
		Expect:     expectCurrent(rec),
		Writes: []FieldWrite{
			{Column: ColCompletedAt, Value: datetime.Format(completed)},
			{Column: ColResolutionNotes, Value: notes},
			{Column: ColStage, Value: StageHandled},
			{Column: ColClosed, Value: RawClosed},
			{Column: ColStatus, Value: RawDone},
		},
		After: after,
	}, nil
}

// PlanReopen computes the writes of the gated Done -> InProgress edge.
// Authorization is the caller's concern; this only checks record state.
func PlanReopen(rec Record, req ReopenRequest) (TransitionPlan, error) {
	if g := CanReopen(rec, req); !g.Allowed {
		return TransitionPlan{}, invalid(g)
	}

	inspector := strings.TrimSpace(req.Inspector)
	if inspector == "" {
		inspector = rec.Inspector
	}
	remarks := strings.TrimSpace(req.Reason)
	if prev := strings.TrimSpace(rec.Remarks); prev != "" {
		remarks = prev + "\n" + remarks
	}

	after := rec
	after.Status = StatusInProgress
	after.RawStatus = RawInProgress
	after.Inspector = inspector
	after.CompletedAt = nil
	after.ResolutionNotes = ""
	after.Closed = false
	after.Stage = StageRegistered
	after.Remarks = remarks

	return TransitionPlan{
		Transition: TransitionReopen,
		Key:        rec.Key(),
		From:       rec.Status,
		To:         StatusInProgress,
		Expect:     expectCurrent(rec),
		Writes: []FieldWrite{
			{Column: ColClosed, Value: ""},
			{Column: ColCompletedAt, Value: ""},
			{Column: ColResolutionNotes, Value: ""},
			{Column: ColStage, Value: StageRegistered},
			{Column: ColInspector, Value: inspector},
			{Column: ColRemarks, Value: remarks},
			{Column: ColStatus, Value: RawInProgress},
		},
		After: after,
		Effects: []effects.Effect{effects.LogEffect{
			Level:   "warn",
			Message: "incident reopened",
			Fields:  map[string]any{"incident": rec.Key().String(), "reason": req.Reason},
		}},
	}, nil
}
