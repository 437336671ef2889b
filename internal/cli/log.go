package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/primary"
	"github.com/example/faultline/internal/wire"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the incident audit trail",
	Long:  "View and prune the audit trail of incident creations and field changes",
}

var logShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show audit entries",
	Long:  "Show audit entries, optionally for one incident (id or natural key)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		actorID, _ := cmd.Flags().GetString("by")
		action, _ := cmd.Flags().GetString("action")
		limit, _ := cmd.Flags().GetInt("limit")

		filters := primary.LogFilters{
			ActorID: actorID,
			Action:  action,
			Limit:   limit,
		}

		// If a key is provided, filter by it
		if len(args) > 0 {
			key, err := resolveKey(ctx, wire.IncidentService(), args[0])
			if err != nil {
				return err
			}
			filters.IncidentKey = key.String()
		}

		entries, err := wire.LogService().ListLogs(ctx, filters)
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}

		printLogEntries(entries)
		return nil
	},
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit entries",
	Long:  "Delete audit entries older than the specified number of days (default 90)",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		count, err := wire.LogService().PruneLogs(NewContext(), days)
		if err != nil {
			return fmt.Errorf("failed to prune logs: %w", err)
		}

		if count == 0 {
			fmt.Printf("No log entries older than %d days found.\n", days)
		} else {
			fmt.Printf("Pruned %d log entries older than %d days.\n", count, days)
		}
		return nil
	},
}

func printLogEntries(entries []*primary.LogEntry) {
	if len(entries) == 0 {
		fmt.Println("No log entries found.")
		return
	}

	fmt.Printf("Found %d log entries:\n\n", len(entries))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\t\tINCIDENT\tCHANGE")
	// Oldest first
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			formatTimestamp(e.Timestamp),
			orDash(e.ActorID),
			getActionIcon(e.Action),
			e.IncidentKey,
			describeChange(e),
		)
	}
	w.Flush()
}

// describeChange renders an update as "<column header>: old → new".
func describeChange(e *primary.LogEntry) string {
	if e.Action != "update" || e.FieldName == "" {
		return e.Action
	}
	return fmt.Sprintf("%s: %s → %s", incident.Column(e.FieldName).Header(), orDash(e.OldValue), orDash(e.NewValue))
}

func getActionIcon(action string) string {
	switch action {
	case "create":
		return color.GreenString("+")
	case "update":
		return color.YellowString("~")
	default:
		return "?"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func init() {
	logShowCmd.Flags().String("by", "", "Filter by actor")
	logShowCmd.Flags().String("action", "", "Filter by action (create, update)")
	logShowCmd.Flags().IntP("limit", "n", 100, "Maximum entries to show")

	logPruneCmd.Flags().Int("days", 90, "Delete entries older than N days")

	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logPruneCmd)
}

// LogCmd returns the log command with all subcommands attached.
func LogCmd() *cobra.Command {
	return logCmd
}
