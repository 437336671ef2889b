package incident

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/faultline/internal/core/datetime"
)

// ErrInvalidIntake is returned when an intake request is missing required fields.
var ErrInvalidIntake = errors.New("invalid intake")

// IntakeRequest is a new incident report as filed by field crew.
type IntakeRequest struct {
	Priority     Priority
	Reporter     string
	Position     string
	Location     string
	Equipment    string
	SubEquipment string
	FaultType    string
	Description  string
	Remarks      string
}

// ValidateIntake evaluates whether req can be filed.
// Rules:
// - Position, location, equipment, reporter and description are required
func ValidateIntake(req IntakeRequest) GuardResult {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"position", req.Position},
		{"location", req.Location},
		{"equipment", req.Equipment},
		{"reporter", req.Reporter},
		{"description", req.Description},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return deny("missing required fields: %s", strings.Join(missing, ", "))
	}
	return allow()
}

// NewIntakeRecord builds the Pending record for req.
// The caller supplies the id and the current time to enable testing.
func NewIntakeRecord(req IntakeRequest, id string, now time.Time) (Record, error) {
	if g := ValidateIntake(req); !g.Allowed {
		return Record{}, fmt.Errorf("%w: %s", ErrInvalidIntake, g.Reason)
	}
	created := now.In(datetime.Seoul()).Truncate(time.Second)
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	return Record{
		ID:           id,
		Priority:     priority,
		CreatedAt:    created,
		RawCreatedAt: datetime.Format(created),
		Reporter:     strings.TrimSpace(req.Reporter),
		Position:     strings.TrimSpace(req.Position),
		Location:     strings.TrimSpace(req.Location),
		Equipment:    strings.TrimSpace(req.Equipment),
		SubEquipment: strings.TrimSpace(req.SubEquipment),
		FaultType:    strings.TrimSpace(req.FaultType),
		Description:  strings.TrimSpace(req.Description),
		Status:       StatusPending,
		RawStatus:    RawPending,
		Remarks:      strings.TrimSpace(req.Remarks),
	}, nil
}
