package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/faultline/internal/core/rollup"
	"github.com/example/faultline/internal/ports/primary"
	"github.com/example/faultline/internal/wire"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Summarize incidents by dimension",
	Long: `Count incidents per status for each bucket of a dimension and report the
completion rate.

Dimensions: month, position, location, category, equipment, priority.
With --export the rollups of every dimension (or those given with --by) are
written to an .xlsx workbook instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		by, _ := cmd.Flags().GetStringSlice("by")
		limit, _ := cmd.Flags().GetInt("limit")
		orderName, _ := cmd.Flags().GetString("order")
		export, _ := cmd.Flags().GetString("export")
		raw, _ := cmd.Flags().GetBool("raw")

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		dims, err := parseDimensions(by)
		if err != nil {
			return err
		}

		if export != "" {
			if err := wire.RollupAdapter().Export(ctx, export, primary.ExportRequest{
				Dimensions: dims,
				Filter:     filter,
				IncludeRaw: raw,
			}); err != nil {
				return err
			}
			notify(ctx, fmt.Sprintf("장애 현황 통계를 내보냈습니다: %s", export))
			return nil
		}

		order, err := parseOrder(orderName)
		if err != nil {
			return err
		}
		dim := rollup.ByMonth
		if len(dims) > 0 {
			dim = dims[0]
		}
		_, err = wire.RollupAdapter().Show(ctx, rollup.Options{
			BucketBy: dim,
			Order:    order,
			Limit:    limit,
			Filter:   filter,
		})
		return err
	},
}

func parseDimensions(names []string) ([]rollup.BucketBy, error) {
	var dims []rollup.BucketBy
	for _, n := range names {
		d, ok := rollup.ParseBucketBy(n)
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q (month, position, location, category, equipment, priority)", n)
		}
		dims = append(dims, d)
	}
	return dims, nil
}

func parseOrder(name string) (rollup.Order, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return rollup.OrderDefault, nil
	case "key":
		return rollup.OrderKeyAsc, nil
	case "total":
		return rollup.OrderTotalDesc, nil
	}
	return rollup.OrderDefault, fmt.Errorf("unknown order %q (default, key, total)", name)
}

func init() {
	rollupCmd.Flags().StringSlice("by", nil, "Dimension to bucket on (default month); repeatable with --export")
	rollupCmd.Flags().IntP("limit", "n", 0, "Keep only the first N buckets")
	rollupCmd.Flags().String("order", "default", "Bucket order: default, key or total")
	rollupCmd.Flags().String("export", "", "Write an .xlsx workbook to this path")
	rollupCmd.Flags().Bool("raw", false, "With --export, add a sheet listing the filtered incidents")
	addFilterFlags(rollupCmd)
}

// RollupCmd returns the rollup command.
func RollupCmd() *cobra.Command {
	return rollupCmd
}
