package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/faultline/internal/app"
	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/primary"
	"github.com/example/faultline/internal/wire"
)

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "File a new incident",
	Long: `File a new incident as pending (접수중).

Position, location, equipment, reporter and description are required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		urgent, _ := cmd.Flags().GetBool("urgent")
		reporter, _ := cmd.Flags().GetString("reporter")
		position, _ := cmd.Flags().GetString("position")
		location, _ := cmd.Flags().GetString("location")
		equipment, _ := cmd.Flags().GetString("equipment")
		subEquipment, _ := cmd.Flags().GetString("sub-equipment")
		faultType, _ := cmd.Flags().GetString("fault-type")
		description, _ := cmd.Flags().GetString("description")
		remarks, _ := cmd.Flags().GetString("remarks")

		priority := incident.PriorityNormal
		if urgent {
			priority = incident.PriorityUrgent
		}

		rec, err := wire.IncidentAdapter().Intake(ctx, incident.IntakeRequest{
			Priority:     priority,
			Reporter:     reporter,
			Position:     position,
			Location:     location,
			Equipment:    equipment,
			SubEquipment: subEquipment,
			FaultType:    faultType,
			Description:  description,
			Remarks:      remarks,
		})
		if err != nil {
			return err
		}

		prefix := ""
		if urgent {
			prefix = "[긴급] "
		}
		notify(ctx, fmt.Sprintf("%s신규 장애 접수: %s / %s / %s - %s (%s)",
			prefix, rec.Position, rec.Location, rec.Equipment, rec.Description, rec.Reporter))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List incidents",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		_, err = wire.IncidentAdapter().List(NewContext(), filter)
		return err
	},
}

var showCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show one incident",
	Long: `Show every field of one incident.

The key is an id, a unique id prefix as printed by list, or for legacy rows
"reporter|equipment|description|created".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		key, err := resolveKey(ctx, wire.IncidentService(), args[0])
		if err != nil {
			return err
		}
		_, err = wire.IncidentAdapter().Show(ctx, key)
		return err
	},
}

var startCmd = &cobra.Command{
	Use:   "start [key]",
	Short: "Start work on an incident",
	Long: `Move a pending incident to in progress (점검중) under an inspector.

Starting an incident that is already in progress reassigns it. With --route the
record is also copied into the position's sub-store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		inspector, _ := cmd.Flags().GetString("inspector")
		route, _ := cmd.Flags().GetString("route")
		retry, _ := cmd.Flags().GetBool("retry")

		key, err := resolveKey(ctx, wire.IncidentService(), args[0])
		if err != nil {
			return err
		}
		resp, err := wire.IncidentService().Start(ctx, primary.StartRequest{
			Key:             key,
			Inspector:       inspector,
			RoutedPosition:  route,
			RetryOnConflict: retry,
		})
		if err != nil {
			return transitionError("start", err)
		}
		wire.IncidentAdapter().Transition(resp)

		notify(ctx, fmt.Sprintf("점검 시작: %s / %s - 담당 %s",
			resp.Record.Position, resp.Record.Equipment, resp.Record.Inspector))
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete [key]",
	Short: "Complete an incident",
	Long: `Move an in-progress incident to done (완료) and stamp the completion time.

Without --notes any resolution notes already on the record are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		retry, _ := cmd.Flags().GetBool("retry")

		key, err := resolveKey(ctx, wire.IncidentService(), args[0])
		if err != nil {
			return err
		}
		resp, err := wire.IncidentService().Complete(ctx, primary.CompleteRequest{
			Key:             key,
			ResolutionNotes: notesFlag(cmd),
			RetryOnConflict: retry,
		})
		if err != nil {
			return transitionError("complete", err)
		}
		wire.IncidentAdapter().Transition(resp)

		notify(ctx, fmt.Sprintf("조치 완료: %s / %s - %s",
			resp.Record.Position, resp.Record.Equipment, resp.Record.ResolutionNotes))
		return nil
	},
}

var quickCompleteCmd = &cobra.Command{
	Use:   "quick-complete [key]",
	Short: "Start and complete an incident in one step",
	Long: `Close an incident in one step: start it under the inspector (without
routing) and complete it. An incident already in progress under the same
inspector is completed directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		inspector, _ := cmd.Flags().GetString("inspector")
		retry, _ := cmd.Flags().GetBool("retry")

		key, err := resolveKey(ctx, wire.IncidentService(), args[0])
		if err != nil {
			return err
		}
		resp, err := wire.IncidentService().QuickComplete(ctx, primary.QuickCompleteRequest{
			Key:             key,
			Inspector:       inspector,
			ResolutionNotes: notesFlag(cmd),
			RetryOnConflict: retry,
		})
		if err != nil {
			return transitionError("quick-complete", err)
		}
		wire.IncidentAdapter().Transition(resp)

		notify(ctx, fmt.Sprintf("빠른 완료: %s / %s - 담당 %s",
			resp.Record.Position, resp.Record.Equipment, resp.Record.Inspector))
		return nil
	},
}

var reopenCmd = &cobra.Command{
	Use:   "reopen [key]",
	Short: "Reopen a completed incident",
	Long: `Move a done incident back to in progress.

Requires lifecycle.allow_reopen in the config and, with authorization enabled,
the supervisor role. The reason is appended to the remarks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		inspector, _ := cmd.Flags().GetString("inspector")
		reason, _ := cmd.Flags().GetString("reason")

		key, err := resolveKey(ctx, wire.IncidentService(), args[0])
		if err != nil {
			return err
		}
		resp, err := wire.IncidentService().Reopen(ctx, primary.ReopenRequest{
			Key:       key,
			Inspector: inspector,
			Reason:    reason,
		})
		if err != nil {
			return transitionError("reopen", err)
		}
		wire.IncidentAdapter().Transition(resp)

		notify(ctx, fmt.Sprintf("재오픈: %s / %s - 사유: %s",
			resp.Record.Position, resp.Record.Equipment, reason))
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent open incidents",
	Long:  "Show open incidents (접수중 or 점검중), newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		position, _ := cmd.Flags().GetString("position")
		limit, _ := cmd.Flags().GetInt("limit")
		_, err := wire.IncidentAdapter().Recent(NewContext(), position, limit)
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show completed incidents",
	Long:  "Show completed or closed incidents, most recently completed first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		_, err = wire.IncidentAdapter().History(NewContext(), filter)
		return err
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show one day's intakes and completions",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")

		at := time.Now()
		if date != "" {
			t, err := datetime.Parse(date)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			at = t
		}
		_, err := wire.IncidentAdapter().Daily(NewContext(), at)
		return err
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill-ids",
	Short: "Assign ids to legacy rows",
	Long: `Assign stable ids to rows that have none.

Rows whose natural key (reporter, equipment, description, created) matches more
than one row are skipped and stay legacy rows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		_, err := wire.IncidentAdapter().Backfill(NewContext(), dryRun)
		return err
	},
}

// transitionError adds a hint to errors the user can act on.
func transitionError(op string, err error) error {
	switch {
	case errors.Is(err, app.ErrRefreshAndRetry):
		return fmt.Errorf("failed to %s incident: %w\nHint: the record changed meanwhile; check it with 'faultline show' or pass --retry", op, err)
	case errors.Is(err, app.ErrReopenDisabled):
		return fmt.Errorf("failed to %s incident: %w\nHint: set lifecycle.allow_reopen in .faultline/config.yaml", op, err)
	}
	return fmt.Errorf("failed to %s incident: %w", op, err)
}

func init() {
	// intake
	intakeCmd.Flags().StringP("reporter", "r", "", "Reporter name (required)")
	intakeCmd.Flags().StringP("position", "p", "", "Position (required)")
	intakeCmd.Flags().StringP("location", "l", "", "Location (required)")
	intakeCmd.Flags().StringP("equipment", "e", "", "Equipment (required)")
	intakeCmd.Flags().String("sub-equipment", "", "Sub-equipment")
	intakeCmd.Flags().String("fault-type", "", "Fault type")
	intakeCmd.Flags().StringP("description", "d", "", "What is wrong (required)")
	intakeCmd.Flags().String("remarks", "", "Remarks")
	intakeCmd.Flags().Bool("urgent", false, "File as 긴급")

	// list / history
	addFilterFlags(listCmd)
	addFilterFlags(historyCmd)

	// start
	startCmd.Flags().StringP("inspector", "i", "", "Inspector taking the incident (required)")
	startCmd.Flags().String("route", "", "Position whose sub-store receives a copy")
	startCmd.Flags().Bool("retry", false, "Retry once against a fresh read on conflict")
	startCmd.MarkFlagRequired("inspector")

	// complete
	completeCmd.Flags().StringP("notes", "n", "", "Resolution notes")
	completeCmd.Flags().Bool("retry", false, "Retry once against a fresh read on conflict")

	// quick-complete
	quickCompleteCmd.Flags().StringP("inspector", "i", "", "Inspector closing the incident (required)")
	quickCompleteCmd.Flags().StringP("notes", "n", "", "Resolution notes")
	quickCompleteCmd.Flags().Bool("retry", false, "Retry once against a fresh read on conflict")
	quickCompleteCmd.MarkFlagRequired("inspector")

	// reopen
	reopenCmd.Flags().StringP("inspector", "i", "", "Inspector taking the reopened incident (default: previous inspector)")
	reopenCmd.Flags().String("reason", "", "Why the incident is reopened (required)")
	reopenCmd.MarkFlagRequired("reason")

	// recent
	recentCmd.Flags().StringP("position", "p", "", "Only this position")
	recentCmd.Flags().IntP("limit", "n", app.DefaultRecentLimit, "Maximum incidents to show")

	// daily
	dailyCmd.Flags().String("date", "", "Day to show (default today)")

	// backfill-ids
	backfillCmd.Flags().Bool("dry-run", false, "Show what would be assigned without writing")
}

// IncidentCmds returns the incident lifecycle commands.
func IncidentCmds() []*cobra.Command {
	return []*cobra.Command{
		intakeCmd,
		listCmd,
		showCmd,
		startCmd,
		completeCmd,
		quickCompleteCmd,
		reopenCmd,
		recentCmd,
		historyCmd,
		dailyCmd,
		backfillCmd,
	}
}
