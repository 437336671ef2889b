package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/faultline/internal/core/rollup"
	"github.com/example/faultline/internal/ports/primary"
)

// mockRollupService implements primary.RollupService for testing
type mockRollupService struct {
	resp      *primary.RollupResponse
	exportErr error
	lastPath  string
}

func (m *mockRollupService) Rollup(ctx context.Context, opts rollup.Options) (*primary.RollupResponse, error) {
	return m.resp, nil
}

func (m *mockRollupService) Export(ctx context.Context, path string, req primary.ExportRequest) error {
	m.lastPath = path
	return m.exportErr
}

func TestRollupAdapter_Show(t *testing.T) {
	mock := &mockRollupService{resp: &primary.RollupResponse{
		Buckets: []rollup.Rollup{
			{Key: "2025-08", Label: "2025년 8월", Counts: rollup.Counts{Pending: 1, Done: 1}, Total: 2, CompletionRate: 50},
		},
		Summary: rollup.Rollup{Counts: rollup.Counts{Pending: 1, Done: 1, Unknown: 1}, Total: 2, CompletionRate: 50},
		Dropped: 1,
	}}
	var out bytes.Buffer
	adapter := NewRollupAdapter(mock, &out)

	if _, err := adapter.Show(context.Background(), rollup.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := out.String()
	for _, want := range []string{"2025년 8월", "50.0%", "Total 2", "1 incident(s) with an unrecognized status", "1 row(s) skipped"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestRollupAdapter_Show_Empty(t *testing.T) {
	mock := &mockRollupService{resp: &primary.RollupResponse{Buckets: []rollup.Rollup{}}}
	var out bytes.Buffer
	adapter := NewRollupAdapter(mock, &out)

	if _, err := adapter.Show(context.Background(), rollup.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No incidents to summarize.") {
		t.Errorf("expected empty message, got %q", out.String())
	}
	if !strings.Contains(out.String(), "0.0% complete") {
		t.Errorf("expected zero rate, got %q", out.String())
	}
}

func TestRollupAdapter_Export(t *testing.T) {
	mock := &mockRollupService{}
	var out bytes.Buffer
	adapter := NewRollupAdapter(mock, &out)

	if err := adapter.Export(context.Background(), "out.xlsx", primary.ExportRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.lastPath != "out.xlsx" || !strings.Contains(out.String(), "out.xlsx") {
		t.Errorf("expected export to out.xlsx, got %q", out.String())
	}

	mock.exportErr = errors.New("disk full")
	if err := adapter.Export(context.Background(), "out.xlsx", primary.ExportRequest{}); err == nil {
		t.Error("expected error")
	}
}
