package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/faultline/internal/adapters/sheet"
	"github.com/example/faultline/internal/config"
	"github.com/example/faultline/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a faultline project",
	Long: `Write .faultline/config.yaml with defaults and create the SQLite database
(and the incident workbook for the xlsx backend).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		backend, _ := cmd.Flags().GetString("backend")
		seed, _ := cmd.Flags().GetBool("seed")
		force, _ := cmd.Flags().GetBool("force")

		path := filepath.Join(dir, config.Dir, config.FileName)
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("config already exists at %s\nHint: pass --force to overwrite it", path)
		}

		cfg := config.Default(dir)
		cfg.Store.Backend = backend
		if err := cfg.Validate(); err != nil {
			return err
		}
		if seed && backend != config.BackendSQLite {
			return fmt.Errorf("--seed is only supported with the sqlite backend")
		}

		if err := config.SaveConfig(dir, cfg); err != nil {
			return err
		}
		fmt.Printf("✓ Config written to %s\n", path)

		conn, err := db.Open(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer conn.Close()
		fmt.Printf("✓ Database initialized at %s\n", cfg.Store.SQLitePath)

		if backend == config.BackendXLSX {
			wb := sheet.NewWorkbook(cfg.Store.WorkbookPath, cfg.Store.LogSheet, zap.NewNop())
			if err := wb.Create(context.Background()); err != nil {
				return fmt.Errorf("failed to create workbook: %w", err)
			}
			fmt.Printf("✓ Workbook ready at %s (sheet %s)\n", cfg.Store.WorkbookPath, cfg.Store.LogSheet)
		}

		if seed {
			if err := db.SeedFixtures(conn); err != nil {
				return fmt.Errorf("failed to seed fixtures: %w", err)
			}
			fmt.Println("✓ Development fixtures loaded")
		}

		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  faultline intake -r <reporter> -p <position> -l <location> -e <equipment> -d <description>")
		fmt.Println("  faultline list")
		return nil
	},
}

func init() {
	initCmd.Flags().String("backend", config.BackendSQLite, "Incident store: sqlite or xlsx")
	initCmd.Flags().Bool("seed", false, "Load development fixtures (sqlite only)")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config")
}

// InitCmd returns the init command.
func InitCmd() *cobra.Command {
	return initCmd
}
