package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/core/rollup"
	"github.com/example/faultline/internal/ports/primary"
	"github.com/example/faultline/internal/wire"
)

// notify sends text to the configured webhook. Failures are logged only.
func notify(ctx context.Context, text string) {
	if err := wire.Notifier().Notify(ctx, text); err != nil {
		wire.Logger().Warn("notification failed", zap.Error(err))
	}
}

// resolveKey turns a user-supplied key into a MatchKey. Besides full ids and
// natural keys it accepts a unique id prefix as printed by list.
func resolveKey(ctx context.Context, service primary.IncidentService, s string) (incident.MatchKey, error) {
	key := incident.ParseKey(s)
	if key.ID != "" || strings.Contains(s, "|") {
		return key, nil
	}

	prefix := strings.ToLower(strings.TrimSpace(s))
	if prefix == "" {
		return incident.MatchKey{}, fmt.Errorf("incident key is required")
	}
	resp, err := service.List(ctx, rollup.Filter{})
	if err != nil {
		return incident.MatchKey{}, err
	}
	var hits []string
	for _, rec := range resp.Records {
		if rec.ID != "" && strings.HasPrefix(rec.ID, prefix) {
			hits = append(hits, rec.ID)
		}
	}
	switch len(hits) {
	case 0:
		return incident.MatchKey{}, fmt.Errorf("no incident id starts with %q\nHint: legacy rows are addressed as \"reporter|equipment|description|created\"", s)
	case 1:
		return incident.MatchKey{ID: hits[0]}, nil
	}
	return incident.MatchKey{}, fmt.Errorf("id prefix %q matches %d incidents", s, len(hits))
}

// addFilterFlags registers the record filter flags on cmd.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("month", nil, "Filter by month (YYYY-MM), repeatable")
	cmd.Flags().StringSlice("position", nil, "Filter by position, repeatable")
	cmd.Flags().StringSlice("location", nil, "Filter by location, repeatable")
	cmd.Flags().StringSlice("status", nil, "Filter by status (pending, in_progress, done, unknown or a raw value)")
	cmd.Flags().StringP("keyword", "k", "", "Match equipment, description or resolution notes")
	cmd.Flags().String("from", "", "Created on or after this date")
	cmd.Flags().String("to", "", "Created before this date")
}

// filterFromFlags reads the flags registered by addFilterFlags.
func filterFromFlags(cmd *cobra.Command) (rollup.Filter, error) {
	months, _ := cmd.Flags().GetStringSlice("month")
	positions, _ := cmd.Flags().GetStringSlice("position")
	locations, _ := cmd.Flags().GetStringSlice("location")
	statuses, _ := cmd.Flags().GetStringSlice("status")
	keyword, _ := cmd.Flags().GetString("keyword")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	f := rollup.Filter{
		Months:    months,
		Positions: positions,
		Locations: locations,
		Keyword:   keyword,
	}
	for _, s := range statuses {
		f.Statuses = append(f.Statuses, incident.ParseStatus(s))
	}

	var err error
	if from != "" {
		if f.From, err = datetime.Parse(from); err != nil {
			return f, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if f.To, err = datetime.Parse(to); err != nil {
			return f, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return f, nil
}

// notesFlag returns nil when --notes was not given, so stored notes are kept.
func notesFlag(cmd *cobra.Command) *string {
	if !cmd.Flags().Changed("notes") {
		return nil
	}
	notes, _ := cmd.Flags().GetString("notes")
	return &notes
}
