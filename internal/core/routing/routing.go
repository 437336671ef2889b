// Package routing resolves the position sub-store an incident is copied into
// when work starts.
package routing

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/example/faultline/internal/core/incident"
)

// MaxNameLength is the longest sub-store name a workbook accepts.
const MaxNameLength = 31

// NoRoute is the picker value meaning "do not route".
const NoRoute = "선택 안 함"

var (
	// ErrNoTarget is returned when no position was chosen.
	ErrNoTarget = errors.New("no routing target")
	// ErrInvalidTarget is returned when a position cannot become a sub-store name.
	ErrInvalidTarget = errors.New("invalid routing target")
)

// KnownPositions is the list offered when starting an incident.
var KnownPositions = []string{"Audio/Video", "RACE", "LAB", "운영설비", "충전설비", "정비고", "기타"}

const invalidChars = `[]:*?/\`

// Target is a resolved position sub-store.
type Target struct {
	Position string   // As chosen by staff
	Name     string   // Sanitized sub-store name
	Header   []string // Fixed header row of every sub-store
}

// Resolve maps a position onto its sub-store.
func Resolve(position string) (Target, error) {
	p := strings.TrimSpace(position)
	if p == "" || p == NoRoute {
		return Target{}, ErrNoTarget
	}
	name := SanitizeName(p)
	if name == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, position)
	}
	return Target{
		Position: p,
		Name:     name,
		Header:   incident.Headers(),
	}, nil
}

// SanitizeName applies sheet naming rules: forbidden characters become "_",
// apostrophes may not open or close the name, and the result is cut to
// MaxNameLength runes.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case strings.ContainsRune(invalidChars, r):
			b.WriteRune('_')
		case r < 0x20:
			continue
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), "' ")
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
		name = strings.TrimRight(name, "' ")
	}
	if strings.Trim(name, "_") == "" {
		return ""
	}
	return name
}

// IsKnown reports whether position is one of KnownPositions.
func IsKnown(position string) bool {
	for _, p := range KnownPositions {
		if p == strings.TrimSpace(position) {
			return true
		}
	}
	return false
}
