package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
)

// StatusLabel renders the status of rec, colored by lifecycle state.
// Unknown statuses show their raw store text.
func StatusLabel(rec incident.Record) string {
	switch rec.Status {
	case incident.StatusPending:
		return color.New(color.FgYellow).Sprint(rec.Status.Label())
	case incident.StatusInProgress:
		return color.New(color.FgHiBlue).Sprint(rec.Status.Label())
	case incident.StatusDone:
		return color.New(color.FgHiGreen).Sprint(rec.Status.Label())
	}
	raw := rec.RawStatus
	if raw == "" {
		raw = "-"
	}
	return color.New(color.FgHiBlack).Sprintf("%s(%s)", rec.Status.Label(), raw)
}

// PriorityMarker flags urgent incidents.
func PriorityMarker(p incident.Priority) string {
	if p == incident.PriorityUrgent {
		return color.New(color.FgRed, color.Bold).Sprint("!")
	}
	return " "
}

// ShortKey renders a record key for tables: the first id segment, or a
// marker for legacy rows.
func ShortKey(rec incident.Record) string {
	if rec.ID == "" {
		return color.New(color.FgHiBlack).Sprint("(legacy)")
	}
	if i := strings.IndexByte(rec.ID, '-'); i > 0 {
		return rec.ID[:i]
	}
	return rec.ID
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func when(rec incident.Record) string {
	return datetime.Format(rec.CreatedAt)
}

func completedWhen(rec incident.Record) string {
	if rec.CompletedAt == nil {
		return "-"
	}
	return datetime.Format(*rec.CompletedAt)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
