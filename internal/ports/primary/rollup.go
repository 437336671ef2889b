package primary

import (
	"context"

	"github.com/example/faultline/internal/core/rollup"
)

// RollupService defines the primary port for dashboard statistics.
type RollupService interface {
	// Rollup buckets the current working set.
	Rollup(ctx context.Context, opts rollup.Options) (*RollupResponse, error)

	// Export writes rollups for each dimension to an .xlsx file at path.
	Export(ctx context.Context, path string, req ExportRequest) error
}

// RollupResponse contains bucketed statistics plus the overall KPI.
type RollupResponse struct {
	Buckets []rollup.Rollup
	Summary rollup.Rollup
	Dropped int
}

// ExportRequest selects what goes into an export workbook.
type ExportRequest struct {
	Dimensions []rollup.BucketBy // One sheet each; empty means all
	Filter     rollup.Filter
	IncludeRaw bool // Add a sheet with the filtered records
}
