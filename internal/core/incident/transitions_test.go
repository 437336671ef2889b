package incident

import (
	"errors"
	"testing"
	"time"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/effects"
)

func strPtr(s string) *string { return &s }

// applyPlan mimics a store applying the plan's writes to a row.
func applyPlan(t *testing.T, row Row, plan TransitionPlan) Row {
	t.Helper()
	if !plan.Expect.Matches(row) {
		t.Fatalf("plan precondition does not match row: %v", plan.Expect)
	}
	out := row.Clone()
	for _, w := range plan.Writes {
		out[w.Column] = w.Value
	}
	return out
}

func TestCanStart(t *testing.T) {
	tests := []struct {
		name        string
		status      Status
		inspector   string
		wantAllowed bool
		wantReason  string
	}{
		{"start pending", StatusPending, "김철수", true, ""},
		{"reassign in progress", StatusInProgress, "박민수", true, ""},
		{"no inspector", StatusPending, "  ", false, "inspector is required to start incident abc"},
		{"done", StatusDone, "김철수", false, "cannot start incident abc from status done"},
		{"unknown", StatusUnknown, "김철수", false, `cannot start incident abc from status unknown ("보류")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{ID: "abc", Status: tt.status, RawStatus: "보류"}
			result := CanStart(rec, StartRequest{Inspector: tt.inspector})
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestCanComplete(t *testing.T) {
	tests := []struct {
		name        string
		status      Status
		notes       *string
		wantAllowed bool
		wantReason  string
	}{
		{"complete in progress", StatusInProgress, strPtr("교체완료"), true, ""},
		{"empty notes allowed", StatusInProgress, strPtr(""), true, ""},
		{"notes not provided", StatusInProgress, nil, false, "resolution notes must be provided to complete incident abc"},
		{"pending", StatusPending, strPtr("x"), false, "cannot complete incident abc from status pending"},
		{"done", StatusDone, strPtr("x"), false, "cannot complete incident abc from status done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{ID: "abc", Status: tt.status}
			result := CanComplete(rec, CompleteRequest{ResolutionNotes: tt.notes})
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestPlanStart(t *testing.T) {
	rec := Record{ID: "abc", Status: StatusPending, RawStatus: "대기"}

	plan, err := PlanStart(rec, StartRequest{Inspector: "김철수", RoutedPosition: "Audio/Video"})
	if err != nil {
		t.Fatalf("PlanStart() error = %v", err)
	}
	if plan.From != StatusPending || plan.To != StatusInProgress {
		t.Errorf("plan %s -> %s, want pending -> in_progress", plan.From, plan.To)
	}
	last := plan.Writes[len(plan.Writes)-1]
	if last.Column != ColStatus || last.Value != RawInProgress {
		t.Errorf("last write = %+v, want status %s", last, RawInProgress)
	}
	if !plan.Expect.Matches(Row{ColStatus: "대기"}) {
		t.Error("expect should accept any pending variant")
	}
	if plan.Expect.Matches(Row{ColStatus: "점검중"}) {
		t.Error("expect should reject a row already in progress")
	}

	var route *effects.RouteEffect
	for _, e := range plan.Effects {
		if r, ok := e.(effects.RouteEffect); ok {
			route = &r
		}
	}
	if route == nil || route.Position != "Audio/Video" || route.IncidentID != "abc" {
		t.Errorf("route effect = %+v", route)
	}
	if plan.After.RoutedPosition != "Audio/Video" || plan.After.Stage != StageRegistered {
		t.Errorf("After = %+v", plan.After)
	}
}

func TestPlanStart_NoRouteWithoutPosition(t *testing.T) {
	plan, err := PlanStart(Record{ID: "abc", Status: StatusPending}, StartRequest{Inspector: "김철수"})
	if err != nil {
		t.Fatalf("PlanStart() error = %v", err)
	}
	for _, e := range plan.Effects {
		if _, ok := e.(effects.RouteEffect); ok {
			t.Error("unexpected route effect")
		}
	}
	for _, w := range plan.Writes {
		if w.Column == ColRoutedPosition {
			t.Error("unexpected routed position write")
		}
	}
}

func TestPlanStart_Reassignment(t *testing.T) {
	rec := Record{ID: "abc", Status: StatusInProgress, RawStatus: RawInProgress, Inspector: "김철수"}
	plan, err := PlanStart(rec, StartRequest{Inspector: "박민수"})
	if err != nil {
		t.Fatalf("PlanStart() error = %v", err)
	}
	if !plan.Expect.Matches(Row{ColStatus: RawInProgress, ColInspector: "김철수"}) {
		t.Error("expect should pin the previous inspector")
	}
	if plan.Expect.Matches(Row{ColStatus: RawInProgress, ColInspector: "최지훈"}) {
		t.Error("expect should reject a concurrent reassignment")
	}
	found := false
	for _, e := range plan.Effects {
		if l, ok := e.(effects.LogEffect); ok && l.Message == "inspector reassigned" {
			found = true
		}
	}
	if !found {
		t.Error("expected reassignment log effect")
	}
}

func TestPlanComplete(t *testing.T) {
	now := time.Date(2025, 10, 21, 1, 0, 0, 0, time.UTC)
	rec := Record{ID: "abc", Status: StatusInProgress, RawStatus: RawInProgress, Inspector: "김철수"}

	plan, err := PlanComplete(rec, CompleteRequest{ResolutionNotes: strPtr("교체완료")}, now)
	if err != nil {
		t.Fatalf("PlanComplete() error = %v", err)
	}
	want := map[Column]string{
		ColCompletedAt:     "2025-10-21 10:00:00",
		ColResolutionNotes: "교체완료",
		ColStage:           StageHandled,
		ColClosed:          RawClosed,
		ColStatus:          RawDone,
	}
	got := map[Column]string{}
	for _, w := range plan.Writes {
		got[w.Column] = w.Value
	}
	for c, v := range want {
		if got[c] != v {
			t.Errorf("write %s = %q, want %q", c, got[c], v)
		}
	}
	if plan.Writes[len(plan.Writes)-1].Column != ColStatus {
		t.Error("status must be the last write")
	}
	if g := plan.After.CheckInvariants(); g.Allowed {
		// CreatedAt is zero in this fixture; only that rule may fail.
		t.Error("expected missing creation time to be reported")
	} else if g.Reason != "incident abc has no creation time" {
		t.Errorf("unexpected invariant failure: %s", g.Reason)
	}
}

func TestPlanReopen(t *testing.T) {
	done := time.Date(2025, 10, 21, 10, 0, 0, 0, datetime.Seoul())
	rec := Record{
		ID: "abc", Status: StatusDone, RawStatus: RawDone, Inspector: "김철수",
		CompletedAt: &done, ResolutionNotes: "교체완료", Closed: true, Remarks: "기존 메모",
	}

	if _, err := PlanReopen(rec, ReopenRequest{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("PlanReopen() without reason error = %v, want ErrInvalidTransition", err)
	}

	plan, err := PlanReopen(rec, ReopenRequest{Reason: "재발"})
	if err != nil {
		t.Fatalf("PlanReopen() error = %v", err)
	}
	if plan.After.CompletedAt != nil || plan.After.Closed || plan.After.ResolutionNotes != "" {
		t.Errorf("completion fields not cleared: %+v", plan.After)
	}
	if plan.After.Inspector != "김철수" {
		t.Errorf("Inspector = %q, want previous inspector kept", plan.After.Inspector)
	}
	if plan.After.Remarks != "기존 메모\n재발" {
		t.Errorf("Remarks = %q", plan.After.Remarks)
	}
	if plan.Writes[len(plan.Writes)-1].Column != ColStatus {
		t.Error("status must be the last write")
	}

	if _, err := PlanReopen(Record{ID: "abc", Status: StatusInProgress}, ReopenRequest{Reason: "x"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("PlanReopen(in progress) error = %v, want ErrInvalidTransition", err)
	}
}

func TestLifecycleEndToEnd(t *testing.T) {
	row := Row{
		ColID:          "abc",
		ColCreatedAt:   "2025. 10. 20 오후 3:05:39",
		ColReporter:    "이영희",
		ColPosition:    "RACE",
		ColLocation:    "트랙",
		ColEquipment:   "신호등",
		ColDescription: "점등 불량",
		ColStatus:      "접수중",
	}
	now := time.Date(2025, 10, 21, 9, 30, 0, 0, datetime.Seoul())

	rec, err := FromRow(row)
	if err != nil {
		t.Fatalf("FromRow() error = %v", err)
	}
	if want := time.Date(2025, 10, 20, 15, 5, 39, 0, datetime.Seoul()); !rec.CreatedAt.Equal(want) {
		t.Fatalf("CreatedAt = %v, want %v", rec.CreatedAt, want)
	}
	if rec.Status != StatusPending {
		t.Fatalf("Status = %q, want pending", rec.Status)
	}

	start, err := PlanStart(rec, StartRequest{Inspector: "김철수"})
	if err != nil {
		t.Fatalf("PlanStart() error = %v", err)
	}
	row = applyPlan(t, row, start)
	rec, _ = FromRow(row)
	if rec.Status != StatusInProgress || rec.Inspector != "김철수" {
		t.Fatalf("after start: status %q inspector %q", rec.Status, rec.Inspector)
	}

	complete, err := PlanComplete(rec, CompleteRequest{ResolutionNotes: strPtr("교체완료")}, now)
	if err != nil {
		t.Fatalf("PlanComplete() error = %v", err)
	}
	row = applyPlan(t, row, complete)
	rec, _ = FromRow(row)
	if rec.Status != StatusDone || rec.ResolutionNotes != "교체완료" || rec.CompletedAt == nil || !rec.Closed {
		t.Fatalf("after complete: %+v", rec)
	}
	if !rec.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", rec.CompletedAt, now)
	}
	if g := rec.CheckInvariants(); !g.Allowed {
		t.Errorf("invariants broken: %s", g.Reason)
	}

	if _, err := PlanStart(rec, StartRequest{Inspector: "X"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("PlanStart(done) error = %v, want ErrInvalidTransition", err)
	}
}

func TestStatusNeverRegressesOnPrimaryPath(t *testing.T) {
	now := time.Now()
	statuses := []Status{StatusPending, StatusInProgress, StatusDone, StatusUnknown}

	for _, s := range statuses {
		rec := Record{ID: "abc", Status: s, RawStatus: s.Raw(), Inspector: "김철수"}
		if plan, err := PlanStart(rec, StartRequest{Inspector: "김철수"}); err == nil && plan.To.Rank() < s.Rank() {
			t.Errorf("start regressed %s -> %s", s, plan.To)
		}
		if plan, err := PlanComplete(rec, CompleteRequest{ResolutionNotes: strPtr("")}, now); err == nil && plan.To.Rank() < s.Rank() {
			t.Errorf("complete regressed %s -> %s", s, plan.To)
		}
	}
}
