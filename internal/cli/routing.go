package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/faultline/internal/wire"
)

var routingCmd = &cobra.Command{
	Use:   "routing",
	Short: "Manage position sub-store copies",
	Long:  "Inspect and replay position copies that failed to land",
}

var routingPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List copies awaiting replay",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		attempts, err := wire.RoutingService().Pending(NewContext(), limit)
		if err != nil {
			return fmt.Errorf("failed to list pending copies: %w", err)
		}
		if len(attempts) == 0 {
			fmt.Println("No pending copies.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tINCIDENT\tSUB-STORE\tTRIES\tQUEUED\tLAST ERROR")
		fmt.Fprintln(w, "--\t--------\t---------\t-----\t------\t----------")
		for _, a := range attempts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				a.ID, a.IncidentKey, a.SubStore, a.Attempts, formatTimestamp(a.CreatedAt), a.LastError)
		}
		w.Flush()
		return nil
	},
}

var routingReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Retry pending copies once",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return replayOnce(limit)
	},
}

var routingWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Replay pending copies on a schedule",
	Long: `Replay pending copies on routing.replay_schedule (a cron spec such as
"@every 5m" or "*/10 * * * *") until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		schedule, _ := cmd.Flags().GetString("schedule")
		if schedule == "" {
			schedule = wire.Config().Routing.ReplaySchedule
		}
		logger := wire.Logger()

		c, err := newReplayScheduler(schedule, logger, func() {
			if err := replayOnce(limit); err != nil {
				logger.Error("scheduled replay failed", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}

		fmt.Printf("Replaying pending copies on %q. Press Ctrl-C to stop.\n", schedule)
		c.Start()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		<-c.Stop().Done()
		fmt.Println("Stopped.")
		return nil
	},
}

// newReplayScheduler schedules run on spec. A tick that fires while the
// previous run is still going is skipped.
func newReplayScheduler(spec string, logger *zap.Logger, run func()) (*cron.Cron, error) {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(spec, run); err != nil {
		return nil, fmt.Errorf("invalid replay schedule %q: %w", spec, err)
	}
	return c, nil
}

func replayOnce(limit int) error {
	ctx := NewContext()
	resp, err := wire.RoutingService().Replay(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to replay copies: %w", err)
	}
	fmt.Printf("✓ Replay: %d delivered, %d failed, %d abandoned\n", resp.Delivered, resp.Failed, resp.Abandoned)
	if resp.Abandoned > 0 {
		notify(ctx, fmt.Sprintf("포지션 시트 복사 %d건이 재시도 한도를 넘어 중단되었습니다.", resp.Abandoned))
	}
	return nil
}

func init() {
	routingPendingCmd.Flags().IntP("limit", "n", 50, "Maximum entries to show")
	routingReplayCmd.Flags().IntP("limit", "n", 0, "Maximum entries to replay (0 = all)")
	routingWatchCmd.Flags().IntP("limit", "n", 0, "Maximum entries per run (0 = all)")
	routingWatchCmd.Flags().String("schedule", "", "Cron spec overriding routing.replay_schedule")

	routingCmd.AddCommand(routingPendingCmd)
	routingCmd.AddCommand(routingReplayCmd)
	routingCmd.AddCommand(routingWatchCmd)
}

// RoutingCmd returns the routing command with all subcommands attached.
func RoutingCmd() *cobra.Command {
	return routingCmd
}
