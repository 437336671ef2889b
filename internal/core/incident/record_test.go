package incident

import (
	"errors"
	"testing"
	"time"

	"github.com/example/faultline/internal/core/datetime"
)

func sampleRow() Row {
	return Row{
		ColPriority:    "긴급",
		ColCreatedAt:   "2025. 10. 20 오후 3:05:39",
		ColReporter:    "이영희",
		ColPosition:    "RACE",
		ColLocation:    "레이싱 트랙",
		ColEquipment:   "신호등",
		ColFaultType:   "전기",
		ColDescription: "점등 불량",
		ColStatus:      "접수중",
	}
}

func TestFromRow(t *testing.T) {
	rec, err := FromRow(sampleRow())
	if err != nil {
		t.Fatalf("FromRow() error = %v", err)
	}

	want := time.Date(2025, 10, 20, 15, 5, 39, 0, datetime.Seoul())
	if !rec.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, want)
	}
	if rec.Status != StatusPending {
		t.Errorf("Status = %q, want %q", rec.Status, StatusPending)
	}
	if rec.Priority != PriorityUrgent {
		t.Errorf("Priority = %q, want %q", rec.Priority, PriorityUrgent)
	}
	if !rec.IsLegacy() {
		t.Error("expected row without id to be legacy")
	}
	if rec.RawCreatedAt != "2025. 10. 20 오후 3:05:39" {
		t.Errorf("RawCreatedAt = %q", rec.RawCreatedAt)
	}
}

func TestFromRow_UnparsableCreatedAt(t *testing.T) {
	row := sampleRow()
	row[ColCreatedAt] = "미정"

	_, err := FromRow(row)
	if !errors.Is(err, datetime.ErrParseFailure) {
		t.Fatalf("FromRow() error = %v, want ErrParseFailure", err)
	}
}

func TestFromRow_KeepsUnknownStatusRaw(t *testing.T) {
	row := sampleRow()
	row[ColStatus] = "보류"

	rec, err := FromRow(row)
	if err != nil {
		t.Fatalf("FromRow() error = %v", err)
	}
	if rec.Status != StatusUnknown {
		t.Errorf("Status = %q, want unknown", rec.Status)
	}
	if rec.RawStatus != "보류" {
		t.Errorf("RawStatus = %q, want 보류", rec.RawStatus)
	}
	if got := rec.ToRow().Get(ColStatus); got != "보류" {
		t.Errorf("ToRow status = %q, want raw value preserved", got)
	}
}

func TestFromRow_BadCompletedAtIsDropped(t *testing.T) {
	row := sampleRow()
	row[ColStatus] = "완료"
	row[ColCompletedAt] = "언젠가"

	rec, err := FromRow(row)
	if err != nil {
		t.Fatalf("FromRow() error = %v", err)
	}
	if rec.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", rec.CompletedAt)
	}
}

func TestRecordToRowRoundTrip(t *testing.T) {
	rec, err := FromRow(sampleRow())
	if err != nil {
		t.Fatalf("FromRow() error = %v", err)
	}
	back, err := FromRow(rec.ToRow())
	if err != nil {
		t.Fatalf("FromRow(ToRow()) error = %v", err)
	}
	if !back.CreatedAt.Equal(rec.CreatedAt) || back.Key() != rec.Key() {
		t.Errorf("round trip changed record: %+v vs %+v", back, rec)
	}
}

func TestMatchKey(t *testing.T) {
	row := sampleRow()
	rec, _ := FromRow(row)

	if !rec.Key().Matches(row) {
		t.Error("natural key should match its own row")
	}

	row[ColID] = "0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a10"
	byID := MatchKey{ID: "0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a10"}
	if !byID.Matches(row) {
		t.Error("id key should match")
	}
	other := row.Clone()
	other[ColID] = "0199f1c4-0000-7d3b-9a55-3f6f0f2d1a10"
	if byID.Matches(other) {
		t.Error("id key should not match a different id even with same natural fields")
	}
	if (MatchKey{}).Matches(row) {
		t.Error("zero key must never match")
	}
}

func TestParseKey(t *testing.T) {
	k := ParseKey("0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a10")
	if k.ID == "" {
		t.Errorf("ParseKey(uuid) = %+v, want id", k)
	}

	k = ParseKey("이영희|신호등|점등 불량|2025. 10. 20 오후 3:05:39")
	if k.ID != "" || k.Natural.Equipment != "신호등" || k.Natural.RawCreatedAt != "2025. 10. 20 오후 3:05:39" {
		t.Errorf("ParseKey(natural) = %+v", k)
	}
	if k.String() != "이영희|신호등|점등 불량|2025. 10. 20 오후 3:05:39" {
		t.Errorf("String() = %q", k.String())
	}
}

func TestNewID(t *testing.T) {
	a, err := NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	b, _ := NewID()
	if a == b {
		t.Error("expected distinct ids")
	}
	if ParseKey(a).ID != a {
		t.Errorf("generated id %q not recognized as id", a)
	}
}

func TestCheckInvariants(t *testing.T) {
	now := time.Date(2025, 10, 21, 9, 0, 0, 0, datetime.Seoul())
	base := Record{ID: "x", CreatedAt: now}

	tests := []struct {
		name        string
		mutate      func(r *Record)
		wantAllowed bool
	}{
		{"pending ok", func(r *Record) { r.Status = StatusPending }, true},
		{"in progress needs inspector", func(r *Record) { r.Status = StatusInProgress }, false},
		{"in progress with inspector", func(r *Record) { r.Status = StatusInProgress; r.Inspector = "김철수" }, true},
		{"done needs completion", func(r *Record) { r.Status = StatusDone }, false},
		{"done with completion", func(r *Record) { r.Status = StatusDone; r.CompletedAt = &now }, true},
		{"pending with completion", func(r *Record) { r.Status = StatusPending; r.CompletedAt = &now }, false},
		{"missing created", func(r *Record) { r.CreatedAt = time.Time{} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			if got := r.CheckInvariants(); got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (%s)", got.Allowed, tt.wantAllowed, got.Reason)
			}
		})
	}
}

func TestHeaders(t *testing.T) {
	h := Headers()
	if len(h) != len(Columns) {
		t.Fatalf("len(Headers()) = %d, want %d", len(h), len(Columns))
	}
	for i, c := range Columns {
		got, ok := ColumnForHeader(h[i])
		if !ok || got != c {
			t.Errorf("ColumnForHeader(%q) = %q, %v; want %q", h[i], got, ok, c)
		}
	}
}

func TestPreconditionMatches(t *testing.T) {
	row := Row{ColStatus: " 접수중 ", ColInspector: ""}
	if !(Precondition{ColStatus: RawVariants(StatusPending)}).Matches(row) {
		t.Error("expected pending variants to match")
	}
	if (Precondition{ColStatus: {RawInProgress}}).Matches(row) {
		t.Error("expected in-progress precondition to fail")
	}
	if !(Precondition{ColInspector: {""}}).Matches(row) {
		t.Error("expected empty inspector to match")
	}
}

func TestValidateIntake(t *testing.T) {
	full := IntakeRequest{
		Reporter: "이영희", Position: "RACE", Location: "트랙",
		Equipment: "신호등", Description: "점등 불량",
	}
	if g := ValidateIntake(full); !g.Allowed {
		t.Errorf("ValidateIntake(full) denied: %s", g.Reason)
	}

	missing := full
	missing.Location = " "
	missing.Reporter = ""
	g := ValidateIntake(missing)
	if g.Allowed {
		t.Fatal("expected missing fields to be denied")
	}
	if g.Reason != "missing required fields: location, reporter" {
		t.Errorf("Reason = %q", g.Reason)
	}

	_, err := NewIntakeRecord(missing, "id", time.Now())
	if !errors.Is(err, ErrInvalidIntake) {
		t.Errorf("NewIntakeRecord() error = %v, want ErrInvalidIntake", err)
	}
}

func TestNewIntakeRecord(t *testing.T) {
	now := time.Date(2025, 10, 20, 6, 5, 39, 0, time.UTC)
	rec, err := NewIntakeRecord(IntakeRequest{
		Priority: PriorityUrgent,
		Reporter: " 이영희 ", Position: "RACE", Location: "트랙",
		Equipment: "신호등", Description: "점등 불량",
	}, "abc", now)
	if err != nil {
		t.Fatalf("NewIntakeRecord() error = %v", err)
	}
	if rec.Status != StatusPending || rec.RawStatus != RawPending {
		t.Errorf("status = %q/%q, want pending", rec.Status, rec.RawStatus)
	}
	if rec.RawCreatedAt != "2025-10-20 15:05:39" {
		t.Errorf("RawCreatedAt = %q", rec.RawCreatedAt)
	}
	if rec.Reporter != "이영희" {
		t.Errorf("Reporter = %q, want trimmed", rec.Reporter)
	}
	if g := rec.CheckInvariants(); !g.Allowed {
		t.Errorf("new record breaks invariants: %s", g.Reason)
	}
}
