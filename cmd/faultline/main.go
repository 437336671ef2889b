package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/faultline/internal/cli"
	"github.com/example/faultline/internal/version"
	"github.com/example/faultline/internal/wire"
)

func main() {
	// FAULTLINE_* overrides may live in a local .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	rootCmd := &cobra.Command{
		Use:     "faultline",
		Short:   "faultline - incident lifecycle and aggregation",
		Version: version.String(),
		Long: `faultline records facility incidents, moves them through
pending → in progress → done, and summarizes them for the dashboard.`,
		SilenceUsage: true,
	}
	cli.BindGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.IncidentCmds()...)
	rootCmd.AddCommand(cli.RollupCmd())
	rootCmd.AddCommand(cli.RoutingCmd())
	rootCmd.AddCommand(cli.LogCmd())

	err := rootCmd.Execute()
	wire.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
