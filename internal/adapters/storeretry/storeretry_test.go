package storeretry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/secondary"
)

// flakyStore fails the first failures calls with err.
type flakyStore struct {
	failures int
	err      error
	calls    int
}

func (f *flakyStore) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) ListAll(ctx context.Context) ([]incident.Row, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return []incident.Row{{incident.ColReporter: "이영희"}}, nil
}

func (f *flakyStore) AppendRow(ctx context.Context, row incident.Row) error { return f.fail() }

func (f *flakyStore) UpdateFields(ctx context.Context, req secondary.UpdateRequest) error {
	return f.fail()
}

func fastOptions(attempts uint64) Options {
	return Options{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestStore_RetriesTransient(t *testing.T) {
	inner := &flakyStore{failures: 2, err: fmt.Errorf("busy: %w", secondary.ErrTransient)}
	s := New(inner, fastOptions(3), zap.NewNop())

	rows, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("len(rows) = %d, want 1", len(rows))
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestStore_ExhaustedSurfacesTransient(t *testing.T) {
	inner := &flakyStore{failures: 10, err: fmt.Errorf("busy: %w", secondary.ErrTransient)}
	s := New(inner, fastOptions(2), zap.NewNop())

	err := s.AppendRow(context.Background(), incident.Row{})
	if !errors.Is(err, secondary.ErrTransient) {
		t.Fatalf("AppendRow() error = %v, want ErrTransient", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3 (1 try + 2 retries)", inner.calls)
	}
}

func TestStore_DoesNotRetryConflictOrNotFound(t *testing.T) {
	for _, sentinel := range []error{secondary.ErrConflict, secondary.ErrNotFound} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			inner := &flakyStore{failures: 10, err: fmt.Errorf("x: %w", sentinel)}
			s := New(inner, fastOptions(5), zap.NewNop())

			err := s.UpdateFields(context.Background(), secondary.UpdateRequest{})
			if !errors.Is(err, sentinel) {
				t.Fatalf("UpdateFields() error = %v, want %v", err, sentinel)
			}
			if inner.calls != 1 {
				t.Errorf("calls = %d, want 1", inner.calls)
			}
		})
	}
}
