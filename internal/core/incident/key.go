package incident

import (
	"strings"

	"github.com/google/uuid"
)

// NaturalKey is the legacy match key built from mutable text fields.
// It is not guaranteed to be unique.
type NaturalKey struct {
	Reporter     string
	Equipment    string
	Description  string
	RawCreatedAt string
}

// MatchKey locates one row. ID wins when set; otherwise the natural key is used.
type MatchKey struct {
	ID      string
	Natural NaturalKey
}

// IsZero reports whether k carries neither an id nor a natural key.
func (k MatchKey) IsZero() bool {
	n := k.Natural
	return strings.TrimSpace(k.ID) == "" &&
		n.Reporter == "" && n.Equipment == "" && n.Description == "" && n.RawCreatedAt == ""
}

// Matches reports whether row is addressed by k.
func (k MatchKey) Matches(row Row) bool {
	if id := strings.TrimSpace(k.ID); id != "" {
		return strings.TrimSpace(row.Get(ColID)) == id
	}
	if k.IsZero() {
		return false
	}
	n := k.Natural
	return strings.TrimSpace(row.Get(ColReporter)) == strings.TrimSpace(n.Reporter) &&
		strings.TrimSpace(row.Get(ColEquipment)) == strings.TrimSpace(n.Equipment) &&
		strings.TrimSpace(row.Get(ColDescription)) == strings.TrimSpace(n.Description) &&
		strings.TrimSpace(row.Get(ColCreatedAt)) == strings.TrimSpace(n.RawCreatedAt)
}

// String renders k for logs and error messages.
func (k MatchKey) String() string {
	if id := strings.TrimSpace(k.ID); id != "" {
		return id
	}
	n := k.Natural
	return strings.Join([]string{n.Reporter, n.Equipment, n.Description, n.RawCreatedAt}, "|")
}

// NewID returns a fresh time-ordered stable identifier.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ParseKey interprets a user-supplied key: a UUID is an id, anything else
// is treated as a "reporter|equipment|description|createdAt" natural key.
func ParseKey(s string) MatchKey {
	s = strings.TrimSpace(s)
	if _, err := uuid.Parse(s); err == nil {
		return MatchKey{ID: s}
	}
	parts := strings.SplitN(s, "|", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return MatchKey{Natural: NaturalKey{
		Reporter:     parts[0],
		Equipment:    parts[1],
		Description:  parts[2],
		RawCreatedAt: parts[3],
	}}
}

// FindAll returns the indexes of every row in rows addressed by k.
func (k MatchKey) FindAll(rows []Row) []int {
	var idx []int
	for i, row := range rows {
		if k.Matches(row) {
			idx = append(idx, i)
		}
	}
	return idx
}
