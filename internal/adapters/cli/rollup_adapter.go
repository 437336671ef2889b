package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/example/faultline/internal/core/rollup"
	"github.com/example/faultline/internal/ports/primary"
)

// RollupAdapter is a thin adapter that translates CLI operations to RollupService calls.
type RollupAdapter struct {
	service primary.RollupService
	out     io.Writer
}

// NewRollupAdapter creates a new RollupAdapter with the given service.
func NewRollupAdapter(service primary.RollupService, out io.Writer) *RollupAdapter {
	return &RollupAdapter{
		service: service,
		out:     out,
	}
}

// Show prints one table of buckets followed by the overall KPI.
func (a *RollupAdapter) Show(ctx context.Context, opts rollup.Options) (*primary.RollupResponse, error) {
	resp, err := a.service.Rollup(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build rollup: %w", err)
	}

	if len(resp.Buckets) == 0 {
		fmt.Fprintln(a.out, "No incidents to summarize.")
	} else {
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "BUCKET\tPENDING\tIN PROGRESS\tDONE\tTOTAL\tRATE\t")
		for _, b := range resp.Buckets {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t\n",
				b.Label, b.Counts.Pending, b.Counts.InProgress, b.Counts.Done, b.Total, percent(b.CompletionRate))
		}
		w.Flush()
	}

	s := resp.Summary
	fmt.Fprintf(a.out, "\nTotal %d: %d pending, %d in progress, %d done (%s complete)\n",
		s.Total, s.Counts.Pending, s.Counts.InProgress, s.Counts.Done, percent(s.CompletionRate))
	if s.Counts.Unknown > 0 {
		fmt.Fprintf(a.out, "%d incident(s) with an unrecognized status are not counted.\n", s.Counts.Unknown)
	}
	if resp.Dropped > 0 {
		fmt.Fprintf(a.out, "%d row(s) skipped: creation date could not be read.\n", resp.Dropped)
	}
	return resp, nil
}

// Export writes the rollup workbook and reports where it went.
func (a *RollupAdapter) Export(ctx context.Context, path string, req primary.ExportRequest) error {
	if err := a.service.Export(ctx, path, req); err != nil {
		return fmt.Errorf("failed to export rollup: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Exported rollup to %s\n", path)
	return nil
}
