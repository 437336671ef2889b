// Package datetime normalizes the free-text timestamps found in intake rows.
// Every value without an explicit zone is read as Asia/Seoul wall-clock time.
package datetime

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/araddon/dateparse"
)

// ErrParseFailure is returned when no strategy can read a raw date.
var ErrParseFailure = errors.New("unparsable date")

// DefaultZone is the implicit zone of every raw timestamp.
const DefaultZone = "Asia/Seoul"

// StoreLayout is the layout the engine writes back into the row store.
const StoreLayout = "2006-01-02 15:04:05"

var zone atomic.Pointer[time.Location]

func init() { zone.Store(loadSeoul()) }

func loadSeoul() *time.Location {
	if loc, err := time.LoadLocation(DefaultZone); err == nil {
		return loc
	}
	// tzdata missing: Korea has no DST, a fixed zone is exact.
	return time.FixedZone("KST", 9*60*60)
}

// Seoul returns the implicit zone, Asia/Seoul unless replaced with SetZone.
func Seoul() *time.Location { return zone.Load() }

// SetZone replaces the implicit zone by IANA name.
func SetZone(name string) error {
	if name == "" || name == DefaultZone {
		zone.Store(loadSeoul())
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	zone.Store(loc)
	return nil
}

// layouts are tried in order after separator normalization.
var layouts = []string{
	"2006-1-2 PM 3:04:05",
	"2006-1-2 PM 3:04",
	"2006-1-2 3:04:05 PM",
	"2006-1-2 3:04 PM",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	"2006-1-2",
	"06-1-2 PM 3:04:05",
	"06-1-2 PM 3:04",
	"06-1-2 3:04:05 PM",
	"06-1-2 3:04 PM",
	"06-1-2 15:04:05",
	"06-1-2 15:04",
	"06-1-2",
}

var (
	separatorRun = regexp.MustCompile(`\s*[./\-]+\s*`)
	spaceRun     = regexp.MustCompile(`\s+`)
	numeric      = regexp.MustCompile(`^\d+(\.\d+)?$`)
	ymdSalvage   = regexp.MustCompile(`(\d{4})\D+(\d{1,2})\D+(\d{1,2})`)
	dashMarker   = regexp.MustCompile(`-(AM|PM)\b`)
	clock        = regexp.MustCompile(`\d{1,2}:\d{2}`)
)

// spreadsheet serial dates count days from this epoch.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31.
const maxSerial = 2958465

// Normalize applies the marker substitution and separator collapsing steps
// without parsing. Exposed for diagnostics.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "오전", " AM ")
	s = strings.ReplaceAll(s, "오후", " PM ")
	s = separatorRun.ReplaceAllString(s, "-")
	// "20. 오후" collapses to "20-PM"; the marker belongs to the clock.
	s = dashMarker.ReplaceAllString(s, " $1")
	s = spaceRun.ReplaceAllString(s, " ")
	s = strings.Trim(s, "- ")
	return s
}

// Parse converts raw text into a timestamp in Asia/Seoul.
func Parse(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrParseFailure)
	}

	s := Normalize(trimmed)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, Seoul()); err == nil {
			return t, nil
		}
	}

	if numeric.MatchString(trimmed) {
		if t, ok := fromSerial(trimmed); ok {
			return t, nil
		}
	}

	if t, err := dateparse.ParseIn(trimmed, Seoul()); err == nil {
		return t.In(Seoul()), nil
	}

	// Salvaging only the date of a value with a clock would silently
	// move it to midnight.
	if clock.MatchString(trimmed) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrParseFailure, raw)
	}
	if m := ymdSalvage.FindStringSubmatch(trimmed); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, Seoul())
		// time.Date normalizes overflow; reject anything it had to move.
		if t.Year() == y && int(t.Month()) == mo && t.Day() == d {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrParseFailure, raw)
}

func fromSerial(s string) (time.Time, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 1 || v > maxSerial {
		return time.Time{}, false
	}
	days := math.Floor(v)
	frac := v - days
	// Serial days are wall-clock dates, not instants.
	base := serialEpoch.AddDate(0, 0, int(days))
	secs := int(math.Round(frac * 86400))
	return time.Date(base.Year(), base.Month(), base.Day(), 0, 0, secs, 0, Seoul()), true
}

// Format renders t in the store layout using Seoul wall-clock time.
func Format(t time.Time) string {
	return t.In(Seoul()).Format(StoreLayout)
}

// Today returns midnight of now's calendar day in Seoul.
func Today(now time.Time) time.Time {
	n := now.In(Seoul())
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, Seoul())
}

// SameDay reports whether a and b fall on the same Seoul calendar day.
func SameDay(a, b time.Time) bool {
	return Today(a).Equal(Today(b))
}

// MonthKey returns the "2006-01" bucket key for t in Seoul.
func MonthKey(t time.Time) string {
	return t.In(Seoul()).Format("2006-01")
}

// MonthLabel returns the Korean month label, e.g. "2025년 8월".
func MonthLabel(t time.Time) string {
	n := t.In(Seoul())
	return fmt.Sprintf("%d년 %d월", n.Year(), int(n.Month()))
}
