package rollup

import (
	"testing"
	"time"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
)

func rec(year int, month time.Month, position string, status incident.Status) incident.Record {
	return incident.Record{
		CreatedAt: time.Date(year, month, 10, 9, 0, 0, 0, datetime.Seoul()),
		Position:  position,
		Status:    status,
	}
}

func TestBuild_Empty(t *testing.T) {
	for _, by := range []BucketBy{ByMonth, ByPosition, ByCategory} {
		got := Build(nil, Options{BucketBy: by})
		if got == nil || len(got) != 0 {
			t.Errorf("Build(nil, %s) = %#v, want empty slice", by, got)
		}
	}
	s := Summarize(nil, Filter{})
	if s.Total != 0 || s.CompletionRate != 0 {
		t.Errorf("Summarize(nil) = %+v, want zero total and rate", s)
	}
}

func TestBuild_MonthsChronological(t *testing.T) {
	records := []incident.Record{
		rec(2026, time.January, "RACE", incident.StatusPending),
		rec(2025, time.December, "RACE", incident.StatusDone),
		rec(2025, time.August, "LAB", incident.StatusDone),
		rec(2025, time.December, "LAB", incident.StatusInProgress),
	}

	got := Build(records, Options{BucketBy: ByMonth})

	wantKeys := []string{"2025-08", "2025-12", "2026-01"}
	wantLabels := []string{"2025년 8월", "2025년 12월", "2026년 1월"}
	if len(got) != len(wantKeys) {
		t.Fatalf("len = %d, want %d", len(got), len(wantKeys))
	}
	for i := range wantKeys {
		if got[i].Key != wantKeys[i] || got[i].Label != wantLabels[i] {
			t.Errorf("bucket %d = %s/%s, want %s/%s", i, got[i].Key, got[i].Label, wantKeys[i], wantLabels[i])
		}
	}
	if got[1].Total != 2 || got[1].Counts.Done != 1 || got[1].CompletionRate != 50 {
		t.Errorf("2025-12 = %+v", got[1])
	}
}

func TestBuild_ZeroTotalRate(t *testing.T) {
	records := []incident.Record{
		{CreatedAt: time.Date(2025, 9, 1, 0, 0, 0, 0, datetime.Seoul()), Position: "RACE", Status: incident.StatusUnknown},
	}

	got := Build(records, Options{BucketBy: ByPosition})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Total != 0 || got[0].CompletionRate != 0 || got[0].Counts.Unknown != 1 {
		t.Errorf("bucket = %+v, want total 0 rate 0 unknown 1", got[0])
	}
}

func TestBuild_PositionOrderAndLimit(t *testing.T) {
	records := []incident.Record{
		rec(2025, time.August, "LAB", incident.StatusDone),
		rec(2025, time.August, "RACE", incident.StatusDone),
		rec(2025, time.August, "RACE", incident.StatusPending),
		rec(2025, time.August, "기타", incident.StatusPending),
		rec(2025, time.August, "", incident.StatusPending),
		rec(2025, time.August, "", incident.StatusPending),
		rec(2025, time.August, "", incident.StatusPending),
	}

	got := Build(records, Options{BucketBy: ByPosition})
	wantKeys := []string{"", "RACE", "LAB", "기타"}
	for i, k := range wantKeys {
		if got[i].Key != k {
			t.Errorf("bucket %d key = %q, want %q", i, got[i].Key, k)
		}
	}
	if got[0].Label != UnassignedLabel {
		t.Errorf("empty position label = %q", got[0].Label)
	}

	top := Build(records, Options{BucketBy: ByPosition, Limit: 2})
	if len(top) != 2 {
		t.Errorf("len(top) = %d, want 2", len(top))
	}

	asc := Build(records, Options{BucketBy: ByPosition, Order: OrderKeyAsc})
	if asc[1].Key != "LAB" || asc[2].Key != "RACE" {
		t.Errorf("key order = %v", []string{asc[0].Key, asc[1].Key, asc[2].Key})
	}
}

func TestBuild_Filter(t *testing.T) {
	records := []incident.Record{
		rec(2025, time.August, "LAB", incident.StatusDone),
		rec(2025, time.September, "RACE", incident.StatusDone),
		rec(2025, time.September, "LAB", incident.StatusPending),
	}

	got := Build(records, Options{
		BucketBy: ByMonth,
		Filter:   Filter{Months: []string{"2025-09"}, Positions: []string{"LAB"}},
	})
	if len(got) != 1 || got[0].Total != 1 || got[0].Counts.Pending != 1 {
		t.Errorf("filtered rollup = %+v", got)
	}

	s := Summarize(records, Filter{Statuses: []incident.Status{incident.StatusDone}})
	if s.Total != 2 || s.CompletionRate != 100 {
		t.Errorf("Summarize(done) = %+v", s)
	}
}

func TestFilter_KeywordAndRange(t *testing.T) {
	a := rec(2025, time.August, "LAB", incident.StatusDone)
	a.Description = "모니터 점등 불량"
	b := rec(2025, time.September, "LAB", incident.StatusDone)
	b.ResolutionNotes = "Monitor replaced"

	f := Filter{Keyword: "monitor"}
	if f.Match(a) || !f.Match(b) {
		t.Error("keyword should match case-insensitively against notes only here")
	}

	r := Filter{From: time.Date(2025, 9, 1, 0, 0, 0, 0, datetime.Seoul())}
	if r.Match(a) || !r.Match(b) {
		t.Error("From bound misapplied")
	}
	r = Filter{To: time.Date(2025, 9, 1, 0, 0, 0, 0, datetime.Seoul())}
	if !r.Match(a) || r.Match(b) {
		t.Error("To bound misapplied")
	}
}

func TestMonths(t *testing.T) {
	records := []incident.Record{
		rec(2026, time.January, "", incident.StatusPending),
		rec(2025, time.August, "", incident.StatusPending),
		rec(2025, time.December, "", incident.StatusPending),
		rec(2025, time.August, "", incident.StatusPending),
	}
	got := Months(records)
	want := []string{"2025-08", "2025-12", "2026-01"}
	if len(got) != len(want) {
		t.Fatalf("Months() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Months()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseBucketBy(t *testing.T) {
	if b, ok := ParseBucketBy("포지션"); !ok || b != ByPosition {
		t.Errorf("ParseBucketBy(포지션) = %q, %v", b, ok)
	}
	if _, ok := ParseBucketBy("weekday"); ok {
		t.Error("ParseBucketBy(weekday) should fail")
	}
}

func TestBuild_ByPriority(t *testing.T) {
	urgent := rec(2025, time.August, "RACE", incident.StatusDone)
	urgent.Priority = incident.PriorityUrgent
	urgentOpen := rec(2025, time.August, "LAB", incident.StatusPending)
	urgentOpen.Priority = incident.PriorityUrgent
	normal := rec(2025, time.August, "LAB", incident.StatusPending)
	normal.Priority = incident.PriorityNormal
	// Rows without a priority read as normal.
	blank := rec(2025, time.September, "RACE", incident.StatusInProgress)

	got := Build([]incident.Record{normal, urgent, blank, urgentOpen}, Options{BucketBy: ByPriority, Order: OrderKeyAsc})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	byKey := map[string]Rollup{}
	for _, r := range got {
		byKey[r.Key] = r
	}
	if r := byKey[incident.RawUrgent]; r.Total != 2 || r.Counts.Done != 1 || r.CompletionRate != 50 || r.Label != incident.RawUrgent {
		t.Errorf("urgent bucket = %+v", r)
	}
	if r := byKey[incident.PriorityNormal.Raw()]; r.Total != 2 || r.Counts.Pending != 1 || r.Counts.InProgress != 1 {
		t.Errorf("normal bucket = %+v", r)
	}
}

func TestParseBucketBy_Priority(t *testing.T) {
	for _, s := range []string{"priority", "구분", " 긴급도 "} {
		if got, ok := ParseBucketBy(s); !ok || got != ByPriority {
			t.Errorf("ParseBucketBy(%q) = %v, %v", s, got, ok)
		}
	}
}
