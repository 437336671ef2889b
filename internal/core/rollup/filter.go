package rollup

import (
	"strings"
	"time"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
)

// Filter narrows a record snapshot. Empty fields do not filter.
type Filter struct {
	Months    []string // "2006-01" keys
	Positions []string
	Locations []string
	Statuses  []incident.Status
	Keyword   string    // Substring of equipment, description or resolution notes
	From      time.Time // Inclusive lower bound on CreatedAt
	To        time.Time // Exclusive upper bound on CreatedAt
}

// IsZero reports whether f filters nothing.
func (f Filter) IsZero() bool {
	return len(f.Months) == 0 && len(f.Positions) == 0 && len(f.Locations) == 0 &&
		len(f.Statuses) == 0 && strings.TrimSpace(f.Keyword) == "" && f.From.IsZero() && f.To.IsZero()
}

// Apply returns the records matching every clause of f.
func (f Filter) Apply(records []incident.Record) []incident.Record {
	if f.IsZero() {
		return records
	}
	out := make([]incident.Record, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Match reports whether rec passes f.
func (f Filter) Match(rec incident.Record) bool {
	if len(f.Months) > 0 && !contains(f.Months, datetime.MonthKey(rec.CreatedAt)) {
		return false
	}
	if len(f.Positions) > 0 && !contains(f.Positions, rec.Position) {
		return false
	}
	if len(f.Locations) > 0 && !contains(f.Locations, rec.Location) {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if rec.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		hay := strings.ToLower(rec.Equipment + " " + rec.Description + " " + rec.ResolutionNotes)
		if !strings.Contains(hay, strings.ToLower(kw)) {
			return false
		}
	}
	if !f.From.IsZero() && rec.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !rec.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, s := range list {
		if strings.TrimSpace(s) == v {
			return true
		}
	}
	return false
}
