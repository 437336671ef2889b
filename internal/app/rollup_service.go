package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/core/rollup"
	"github.com/example/faultline/internal/ports/primary"
	"github.com/example/faultline/internal/ports/secondary"
)

// AllDimensions is the export order when none are requested.
var AllDimensions = []rollup.BucketBy{
	rollup.ByMonth,
	rollup.ByPosition,
	rollup.ByLocation,
	rollup.ByCategory,
	rollup.ByEquipment,
	rollup.ByPriority,
}

var dimensionSheets = map[rollup.BucketBy]string{
	rollup.ByMonth:     "월별",
	rollup.ByPosition:  "포지션별",
	rollup.ByLocation:  "위치별",
	rollup.ByCategory:  "장애유형별",
	rollup.ByEquipment: "설비별",
	rollup.ByPriority:  "구분별",
}

var rollupHeader = []string{"구분", "미조치", "점검중", "완료", "미정의", "합계", "완료율(%)"}

// RollupServiceImpl implements the RollupService interface.
type RollupServiceImpl struct {
	incidents primary.IncidentService
	reports   secondary.ReportWriter
	logger    *zap.Logger
}

// NewRollupService creates a new RollupService with injected dependencies.
func NewRollupService(incidents primary.IncidentService, reports secondary.ReportWriter, logger *zap.Logger) *RollupServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RollupServiceImpl{
		incidents: incidents,
		reports:   reports,
		logger:    logger,
	}
}

// Rollup buckets the current working set.
func (s *RollupServiceImpl) Rollup(ctx context.Context, opts rollup.Options) (*primary.RollupResponse, error) {
	list, err := s.incidents.List(ctx, rollup.Filter{})
	if err != nil {
		return nil, err
	}
	return &primary.RollupResponse{
		Buckets: rollup.Build(list.Records, opts),
		Summary: rollup.Summarize(list.Records, opts.Filter),
		Dropped: list.Dropped,
	}, nil
}

// Export writes one sheet per dimension, preceded by the overall summary.
func (s *RollupServiceImpl) Export(ctx context.Context, path string, req primary.ExportRequest) error {
	if s.reports == nil {
		return fmt.Errorf("no report writer configured")
	}
	list, err := s.incidents.List(ctx, rollup.Filter{})
	if err != nil {
		return err
	}

	dims := req.Dimensions
	if len(dims) == 0 {
		dims = AllDimensions
	}

	report := secondary.Report{}
	report.Sheets = append(report.Sheets, secondary.ReportSheet{
		Name:   "요약",
		Header: rollupHeader,
		Rows:   [][]any{rollupRow(rollup.Summarize(list.Records, req.Filter))},
	})
	for _, dim := range dims {
		name, ok := dimensionSheets[dim]
		if !ok {
			return fmt.Errorf("unknown rollup dimension %q", dim)
		}
		buckets := rollup.Build(list.Records, rollup.Options{BucketBy: dim, Filter: req.Filter})
		rows := make([][]any, len(buckets))
		for i, b := range buckets {
			rows[i] = rollupRow(b)
		}
		report.Sheets = append(report.Sheets, secondary.ReportSheet{Name: name, Header: rollupHeader, Rows: rows})
	}
	if req.IncludeRaw {
		report.Sheets = append(report.Sheets, rawSheet(req.Filter.Apply(list.Records)))
	}

	if err := s.reports.WriteReport(ctx, path, report); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	s.logger.Info("rollup exported",
		zap.String("path", path),
		zap.Int("sheets", len(report.Sheets)),
		zap.Int("records", len(list.Records)))
	return nil
}

func rollupRow(r rollup.Rollup) []any {
	return []any{
		r.Label,
		r.Counts.Pending,
		r.Counts.InProgress,
		r.Counts.Done,
		r.Counts.Unknown,
		r.Total,
		fmt.Sprintf("%.1f", r.CompletionRate),
	}
}

// rawSheet lists records with normalized creation dates.
func rawSheet(records []incident.Record) secondary.ReportSheet {
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := rec.ToRow()
		row[incident.ColCreatedAt] = datetime.Format(rec.CreatedAt)
		cells := make([]any, len(incident.Columns))
		for j, c := range incident.Columns {
			cells[j] = row.Get(c)
		}
		rows[i] = cells
	}
	return secondary.ReportSheet{Name: "목록", Header: incident.Headers(), Rows: rows}
}

// Ensure RollupServiceImpl implements the interface
var _ primary.RollupService = (*RollupServiceImpl)(nil)
