package incident

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/faultline/internal/core/datetime"
)

// Priority of an incident.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Raw priority values used by the intake form.
const (
	RawNormal = "일반"
	RawUrgent = "긴급"
)

// NormalizePriority reads the raw priority; anything not urgent is normal.
func NormalizePriority(raw string) Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RawUrgent, "urgent", "true", "y":
		return PriorityUrgent
	}
	return PriorityNormal
}

// Raw returns the store value for p.
func (p Priority) Raw() string {
	if p == PriorityUrgent {
		return RawUrgent
	}
	return RawNormal
}

// Stage markers of the 장애관리 column.
const (
	StageRegistered = "장애 등록"
	StageHandled    = "장애 처리"
)

// Record is the canonical representation of one incident.
type Record struct {
	ID              string // Empty for legacy rows without a stable id
	Priority        Priority
	CreatedAt       time.Time
	RawCreatedAt    string
	Reporter        string
	Position        string
	Location        string
	Equipment       string
	SubEquipment    string
	FaultType       string
	Description     string
	Status          Status
	RawStatus       string
	RoutedPosition  string
	Inspector       string
	CompletedAt     *time.Time
	ResolutionNotes string
	Stage           string
	Remarks         string
	Closed          bool
}

// Key returns the match key that addresses r in the store.
func (r Record) Key() MatchKey {
	if r.ID != "" {
		return MatchKey{ID: r.ID}
	}
	return MatchKey{Natural: r.NaturalKey()}
}

// NaturalKey returns the legacy composite key of r.
func (r Record) NaturalKey() NaturalKey {
	return NaturalKey{
		Reporter:     r.Reporter,
		Equipment:    r.Equipment,
		Description:  r.Description,
		RawCreatedAt: r.RawCreatedAt,
	}
}

// IsLegacy reports whether r has no stable id.
func (r Record) IsLegacy() bool { return r.ID == "" }

// FromRow normalizes a raw row. A createdAt that cannot be parsed is
// returned as an error wrapping datetime.ErrParseFailure; callers drop the row.
func FromRow(row Row) (Record, error) {
	rawCreated := strings.TrimSpace(row.Get(ColCreatedAt))
	created, err := datetime.Parse(rawCreated)
	if err != nil {
		return Record{}, fmt.Errorf("created_at: %w", err)
	}

	rec := Record{
		ID:              strings.TrimSpace(row.Get(ColID)),
		Priority:        NormalizePriority(row.Get(ColPriority)),
		CreatedAt:       created,
		RawCreatedAt:    rawCreated,
		Reporter:        strings.TrimSpace(row.Get(ColReporter)),
		Position:        strings.TrimSpace(row.Get(ColPosition)),
		Location:        strings.TrimSpace(row.Get(ColLocation)),
		Equipment:       strings.TrimSpace(row.Get(ColEquipment)),
		SubEquipment:    strings.TrimSpace(row.Get(ColSubEquipment)),
		FaultType:       strings.TrimSpace(row.Get(ColFaultType)),
		Description:     strings.TrimSpace(row.Get(ColDescription)),
		RawStatus:       strings.TrimSpace(row.Get(ColStatus)),
		RoutedPosition:  strings.TrimSpace(row.Get(ColRoutedPosition)),
		Inspector:       strings.TrimSpace(row.Get(ColInspector)),
		ResolutionNotes: row.Get(ColResolutionNotes),
		Stage:           strings.TrimSpace(row.Get(ColStage)),
		Remarks:         row.Get(ColRemarks),
		Closed:          isClosed(row.Get(ColClosed)),
	}
	rec.Status = NormalizeStatus(rec.RawStatus)

	// A bad completion stamp does not drop the record, it only loses the stamp.
	if raw := strings.TrimSpace(row.Get(ColCompletedAt)); raw != "" {
		if t, err := datetime.Parse(raw); err == nil {
			rec.CompletedAt = &t
		}
	}

	return rec, nil
}

func isClosed(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RawClosed, "true", "y", "yes", "1":
		return true
	}
	return false
}

// ToRow renders r back into store vocabulary.
func (r Record) ToRow() Row {
	status := r.RawStatus
	if r.Status.Known() {
		status = r.Status.Raw()
	}
	completed := ""
	if r.CompletedAt != nil {
		completed = datetime.Format(*r.CompletedAt)
	}
	closed := ""
	if r.Closed {
		closed = RawClosed
	}
	created := r.RawCreatedAt
	if created == "" && !r.CreatedAt.IsZero() {
		created = datetime.Format(r.CreatedAt)
	}
	return Row{
		ColID:              r.ID,
		ColPriority:        r.Priority.Raw(),
		ColCreatedAt:       created,
		ColReporter:        r.Reporter,
		ColPosition:        r.Position,
		ColLocation:        r.Location,
		ColEquipment:       r.Equipment,
		ColSubEquipment:    r.SubEquipment,
		ColFaultType:       r.FaultType,
		ColDescription:     r.Description,
		ColStatus:          status,
		ColRoutedPosition:  r.RoutedPosition,
		ColInspector:       r.Inspector,
		ColCompletedAt:     completed,
		ColResolutionNotes: r.ResolutionNotes,
		ColStage:           r.Stage,
		ColRemarks:         r.Remarks,
		ColClosed:          closed,
	}
}

// IsCompleted reports whether r belongs in the completed history:
// status Done or explicitly closed.
func (r Record) IsCompleted() bool {
	return r.Status == StatusDone || r.Closed
}

// IsOpen reports whether r still needs work.
func (r Record) IsOpen() bool {
	return r.Status == StatusPending || r.Status == StatusInProgress
}

// CheckInvariants validates the field combinations a record may hold.
func (r Record) CheckInvariants() GuardResult {
	if r.CreatedAt.IsZero() {
		return deny("incident %s has no creation time", r.Key())
	}
	switch r.Status {
	case StatusPending:
		if r.CompletedAt != nil {
			return deny("pending incident %s carries a completion time", r.Key())
		}
	case StatusInProgress:
		if strings.TrimSpace(r.Inspector) == "" {
			return deny("in-progress incident %s has no inspector", r.Key())
		}
		if r.CompletedAt != nil {
			return deny("in-progress incident %s carries a completion time", r.Key())
		}
	case StatusDone:
		if r.CompletedAt == nil {
			return deny("done incident %s has no completion time", r.Key())
		}
	}
	return allow()
}
