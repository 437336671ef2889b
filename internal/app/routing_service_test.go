package app

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/example/faultline/internal/authz"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/secondary"
)

type routingFixture struct {
	service   *RoutingServiceImpl
	store     *mockIncidentStore
	subStores *mockSubStores
	outbox    *mockRoutingOutbox
}

func newRoutingFixture(maxAttempts int, rows ...incident.Row) *routingFixture {
	f := &routingFixture{
		store:     newMockIncidentStore(rows...),
		subStores: newMockSubStores(),
		outbox:    newMockRoutingOutbox(),
	}
	f.service = NewRoutingService(f.store, f.subStores, f.outbox, RoutingOptions{MaxAttempts: maxAttempts}, zap.NewNop())
	return f
}

func mustRecord(t *testing.T, row incident.Row) incident.Record {
	t.Helper()
	rec, err := incident.FromRow(row)
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	return rec
}

func TestRoutingService_Route(t *testing.T) {
	f := newRoutingFixture(3)
	rec := mustRecord(t, inProgressRow())
	ctx := context.Background()

	if err := f.service.Route(ctx, rec, "Audio/Video"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	rows := f.subStores.rows["Audio_Video"]
	if len(rows) != 1 {
		t.Fatalf("expected 1 copy in Audio_Video, got %d", len(rows))
	}
	if len(f.subStores.headers["Audio_Video"]) != len(incident.Columns) {
		t.Errorf("expected the fixed header, got %v", f.subStores.headers["Audio_Video"])
	}

	// A second copy of the same incident replaces the first.
	if err := f.service.Route(ctx, rec, "Audio/Video"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.subStores.rows["Audio_Video"]) != 1 {
		t.Errorf("expected the copy to be replaced, got %d rows", len(f.subStores.rows["Audio_Video"]))
	}
}

func TestRoutingService_Route_NoTarget(t *testing.T) {
	f := newRoutingFixture(3)
	rec := mustRecord(t, inProgressRow())

	for _, position := range []string{"", "  ", "선택 안 함"} {
		if err := f.service.Route(context.Background(), rec, position); err != nil {
			t.Errorf("Route(%q): expected no error, got %v", position, err)
		}
	}
	if len(f.subStores.headers) != 0 {
		t.Errorf("expected no sub-store, got %v", f.subStores.headers)
	}
}

func TestRoutingService_Route_FailureGoesToOutbox(t *testing.T) {
	f := newRoutingFixture(3)
	f.subStores.upsertErr = errors.New("quota exceeded")
	rec := mustRecord(t, inProgressRow())

	err := f.service.Route(context.Background(), rec, "RACE")
	if err == nil {
		t.Fatal("expected error")
	}

	pending, err := f.service.Pending(context.Background(), 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending attempt, got %d", len(pending))
	}
	if pending[0].IncidentKey != idInProgress || pending[0].SubStore != "RACE" {
		t.Errorf("unexpected attempt %+v", pending[0])
	}
}

func TestRoutingService_Replay(t *testing.T) {
	t.Run("delivers once the sub-store recovers", func(t *testing.T) {
		f := newRoutingFixture(3, inProgressRow())
		f.subStores.upsertErr = errors.New("quota exceeded")
		_ = f.service.Route(context.Background(), mustRecord(t, inProgressRow()), "RACE")
		f.subStores.upsertErr = nil

		resp, err := f.service.Replay(context.Background(), 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Delivered != 1 || resp.Failed != 0 {
			t.Errorf("expected 1 delivered, got %+v", resp)
		}
		if len(f.subStores.rows["RACE"]) != 1 {
			t.Errorf("expected the copy in RACE, got %d rows", len(f.subStores.rows["RACE"]))
		}
		if f.outbox.attempts["RT-0001"].Status != secondary.RoutingDelivered {
			t.Errorf("expected delivered, got %s", f.outbox.attempts["RT-0001"].Status)
		}
	})

	t.Run("abandons after max attempts", func(t *testing.T) {
		f := newRoutingFixture(2, inProgressRow())
		f.subStores.upsertErr = errors.New("quota exceeded")
		_ = f.service.Route(context.Background(), mustRecord(t, inProgressRow()), "RACE")

		resp, err := f.service.Replay(context.Background(), 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Abandoned != 1 {
			t.Errorf("expected 1 abandoned, got %+v", resp)
		}
		if f.outbox.attempts["RT-0001"].Status != secondary.RoutingAbandoned {
			t.Errorf("expected abandoned, got %s", f.outbox.attempts["RT-0001"].Status)
		}
	})

	t.Run("missing incident counts as failure", func(t *testing.T) {
		f := newRoutingFixture(5)
		_ = f.outbox.Create(context.Background(), &secondary.RoutingAttemptRecord{
			IncidentKey: idPending,
			Position:    "RACE",
			SubStore:    "RACE",
		})

		resp, err := f.service.Replay(context.Background(), 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Failed != 1 {
			t.Errorf("expected 1 failed, got %+v", resp)
		}
		if f.outbox.attempts["RT-0001"].Attempts != 2 {
			t.Errorf("expected attempts to grow, got %d", f.outbox.attempts["RT-0001"].Attempts)
		}
	})

	t.Run("forbidden actor", func(t *testing.T) {
		f := newRoutingFixture(5)
		f.service.opts.Auth = &mockAuthorizer{deny: map[authz.Action]bool{authz.ActionReplay: true}}

		_, err := f.service.Replay(context.Background(), 0)
		if !errors.Is(err, authz.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
}
