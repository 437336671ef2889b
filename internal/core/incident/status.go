// Package incident contains the pure business logic for incident records:
// normalization of raw rows, the status state machine and transition planning.
// This is part of the Functional Core - no I/O, only pure functions.
package incident

import "strings"

// Status is the canonical incident status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusUnknown    Status = "unknown"
)

// StatusTableVersion identifies the raw vocabulary table below.
// Bump it whenever a raw variant is added or moved.
const StatusTableVersion = 1

// rawStatusTable maps raw store vocabulary onto canonical statuses.
var rawStatusTable = map[string]Status{
	"접수중":  StatusPending,
	"대기":   StatusPending,
	"미조치":  StatusPending,
	"점검중":  StatusInProgress,
	"진행중":  StatusInProgress,
	"처리중":  StatusInProgress,
	"완료":   StatusDone,
	"운영중":  StatusDone,
	"사용중지": StatusDone,
}

// Canonical raw values the engine writes back to the store.
const (
	RawPending    = "접수중"
	RawInProgress = "점검중"
	RawDone       = "완료"
	RawClosed     = "종결"
)

// NormalizeStatus maps a raw status onto the canonical enum.
// Values outside the table are Unknown; callers keep the raw text for listings.
func NormalizeStatus(raw string) Status {
	if s, ok := rawStatusTable[strings.TrimSpace(raw)]; ok {
		return s
	}
	return StatusUnknown
}

// RawVariants returns every raw value that normalizes to s, canonical value first.
func RawVariants(s Status) []string {
	canonical := s.Raw()
	variants := []string{}
	if canonical != "" {
		variants = append(variants, canonical)
	}
	for raw, st := range rawStatusTable {
		if st == s && raw != canonical {
			variants = append(variants, raw)
		}
	}
	return variants
}

// Raw returns the canonical raw value written to the store, or "" for Unknown.
func (s Status) Raw() string {
	switch s {
	case StatusPending:
		return RawPending
	case StatusInProgress:
		return RawInProgress
	case StatusDone:
		return RawDone
	}
	return ""
}

// Rank orders statuses along the primary path. Unknown ranks below Pending.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusInProgress:
		return 2
	case StatusDone:
		return 3
	}
	return 0
}

// Known reports whether s is one of the three lifecycle states.
func (s Status) Known() bool { return s.Rank() > 0 }

// Label returns the Korean display label used by the dashboard.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "미조치(접수중)"
	case StatusInProgress:
		return "점검중"
	case StatusDone:
		return "완료"
	}
	return "미정의"
}

// ParseStatus reads a canonical status name or any raw variant.
func ParseStatus(v string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(v))) {
	case StatusPending:
		return StatusPending
	case StatusInProgress, "inprogress", "in-progress":
		return StatusInProgress
	case StatusDone:
		return StatusDone
	}
	return NormalizeStatus(v)
}
