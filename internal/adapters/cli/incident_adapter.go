// Package cli contains the thin adapters that translate CLI operations into
// primary port calls and render the results.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/core/rollup"
	"github.com/example/faultline/internal/ports/primary"
)

// IncidentAdapter is a thin adapter that translates CLI operations to IncidentService calls.
// It depends only on the IncidentService interface, enabling easy testing with mocks.
type IncidentAdapter struct {
	service primary.IncidentService
	out     io.Writer
}

// NewIncidentAdapter creates a new IncidentAdapter with the given service.
func NewIncidentAdapter(service primary.IncidentService, out io.Writer) *IncidentAdapter {
	return &IncidentAdapter{
		service: service,
		out:     out,
	}
}

// Intake files an incident and prints its id.
func (a *IncidentAdapter) Intake(ctx context.Context, req incident.IntakeRequest) (*incident.Record, error) {
	resp, err := a.service.Intake(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to file incident: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Filed incident %s\n", resp.Record.ID)
	fmt.Fprintf(a.out, "  %s / %s / %s\n", resp.Record.Position, resp.Record.Location, resp.Record.Equipment)
	return &resp.Record, nil
}

// List prints the working set narrowed by filter.
func (a *IncidentAdapter) List(ctx context.Context, filter rollup.Filter) ([]incident.Record, error) {
	resp, err := a.service.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	if len(resp.Records) == 0 {
		fmt.Fprintln(a.out, "No incidents found.")
	} else {
		a.table(resp.Records)
	}
	if resp.Dropped > 0 {
		fmt.Fprintf(a.out, "\n%d row(s) skipped: creation date could not be read.\n", resp.Dropped)
	}
	return resp.Records, nil
}

// Show displays every field of one incident.
func (a *IncidentAdapter) Show(ctx context.Context, key incident.MatchKey) (*incident.Record, error) {
	rec, err := a.service.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	id := rec.ID
	if id == "" {
		id = "(legacy, no id) " + rec.Key().String()
	}
	fmt.Fprintf(a.out, "\nIncident: %s\n", id)
	fmt.Fprintf(a.out, "Status:     %s %s\n", StatusLabel(*rec), PriorityMarker(rec.Priority))
	fmt.Fprintf(a.out, "Priority:   %s\n", rec.Priority.Raw())
	fmt.Fprintf(a.out, "Created:    %s\n", when(*rec))
	fmt.Fprintf(a.out, "Reporter:   %s\n", orDash(rec.Reporter))
	fmt.Fprintf(a.out, "Position:   %s\n", orDash(rec.Position))
	fmt.Fprintf(a.out, "Location:   %s\n", orDash(rec.Location))
	fmt.Fprintf(a.out, "Equipment:  %s\n", orDash(rec.Equipment))
	if rec.SubEquipment != "" {
		fmt.Fprintf(a.out, "Sub-equip:  %s\n", rec.SubEquipment)
	}
	fmt.Fprintf(a.out, "Fault type: %s\n", orDash(rec.FaultType))
	fmt.Fprintf(a.out, "Details:    %s\n", orDash(rec.Description))
	fmt.Fprintf(a.out, "Inspector:  %s\n", orDash(rec.Inspector))
	fmt.Fprintf(a.out, "Routed to:  %s\n", orDash(rec.RoutedPosition))
	fmt.Fprintf(a.out, "Stage:      %s\n", orDash(rec.Stage))
	fmt.Fprintf(a.out, "Completed:  %s\n", completedWhen(*rec))
	if rec.ResolutionNotes != "" {
		fmt.Fprintf(a.out, "Resolution: %s\n", rec.ResolutionNotes)
	}
	if rec.Remarks != "" {
		fmt.Fprintf(a.out, "Remarks:    %s\n", strings.ReplaceAll(rec.Remarks, "\n", "\n            "))
	}
	if rec.Closed {
		fmt.Fprintln(a.out, "Closed:     yes")
	}
	if g := rec.CheckInvariants(); !g.Allowed {
		fmt.Fprintf(a.out, "⚠ %s\n", g.Reason)
	}
	fmt.Fprintln(a.out)
	return rec, nil
}

// Transition prints the outcome of a lifecycle operation.
func (a *IncidentAdapter) Transition(resp *primary.TransitionResponse) {
	rec := resp.Record
	fmt.Fprintf(a.out, "✓ %s: %s → %s\n", rec.Key(), resp.From.Label(), StatusLabel(rec))
	if rec.Inspector != "" {
		fmt.Fprintf(a.out, "  Inspector: %s\n", rec.Inspector)
	}
	if resp.Retried {
		fmt.Fprintln(a.out, "  (retried once after a concurrent change)")
	}
	if resp.RoutingFailure != nil {
		fmt.Fprintf(a.out, "⚠ Position copy failed and was queued for replay: %v\n", resp.RoutingFailure)
	}
}

// Recent prints open incidents of a position, newest first.
func (a *IncidentAdapter) Recent(ctx context.Context, position string, limit int) ([]incident.Record, error) {
	recs, err := a.service.RecentOpen(ctx, position, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open incidents: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No open incidents.")
		return recs, nil
	}
	a.table(recs)
	return recs, nil
}

// History prints completed incidents, most recently completed first.
func (a *IncidentAdapter) History(ctx context.Context, filter rollup.Filter) ([]incident.Record, error) {
	recs, err := a.service.CompletedHistory(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed incidents: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No completed incidents.")
		return recs, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMPLETED\tPOSITION\tEQUIPMENT\tINSPECTOR\tRESOLUTION")
	fmt.Fprintln(w, "--\t---------\t--------\t---------\t---------\t----------")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ShortKey(rec),
			completedWhen(rec),
			orDash(rec.Position),
			orDash(rec.Equipment),
			orDash(rec.Inspector),
			orDash(firstLine(rec.ResolutionNotes)),
		)
	}
	w.Flush()
	return recs, nil
}

// Daily prints the intakes and completions of the day of at.
func (a *IncidentAdapter) Daily(ctx context.Context, at time.Time) (*primary.DailyReport, error) {
	report, err := a.service.Daily(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to build daily report: %w", err)
	}

	fmt.Fprintf(a.out, "%s\n\n", report.Day.In(datetime.Seoul()).Format("2006-01-02"))
	fmt.Fprintf(a.out, "Received (%d)\n", len(report.Received))
	if len(report.Received) > 0 {
		a.table(report.Received)
	}
	fmt.Fprintf(a.out, "\nCompleted (%d)\n", len(report.Completed))
	if len(report.Completed) > 0 {
		a.table(report.Completed)
	}
	return report, nil
}

// Backfill assigns ids to legacy rows and prints what happened.
func (a *IncidentAdapter) Backfill(ctx context.Context, dryRun bool) (*primary.BackfillResponse, error) {
	resp, err := a.service.BackfillIDs(ctx, dryRun)
	if err != nil {
		return nil, fmt.Errorf("failed to backfill ids: %w", err)
	}

	verb := "Assigned"
	if dryRun {
		verb = "Would assign"
	}
	for _, as := range resp.Assigned {
		fmt.Fprintf(a.out, "  %s ← %s\n", as.ID, incident.MatchKey{Natural: as.Key})
	}
	fmt.Fprintf(a.out, "%s %d id(s)\n", verb, len(resp.Assigned))
	if len(resp.Ambiguous) > 0 {
		fmt.Fprintf(a.out, "⚠ %d natural key(s) match several rows and were left as legacy rows:\n", len(resp.Ambiguous))
		for _, k := range resp.Ambiguous {
			fmt.Fprintf(a.out, "  %s\n", incident.MatchKey{Natural: k})
		}
	}
	if resp.Failed > 0 {
		fmt.Fprintf(a.out, "⚠ %d row(s) changed during the run; run again to retry them\n", resp.Failed)
	}
	return resp, nil
}

func (a *IncidentAdapter) table(recs []incident.Record) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tCREATED\tPOSITION\tLOCATION\tEQUIPMENT\tSTATUS\tINSPECTOR")
	fmt.Fprintln(w, "\t--\t-------\t--------\t--------\t---------\t------\t---------")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			PriorityMarker(rec.Priority),
			ShortKey(rec),
			when(rec),
			orDash(rec.Position),
			orDash(rec.Location),
			orDash(rec.Equipment),
			StatusLabel(rec),
			orDash(rec.Inspector),
		)
	}
	w.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
