package sheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/example/faultline/internal/core/routing"
	"github.com/example/faultline/internal/ports/secondary"
)

// ReportWriter implements secondary.ReportWriter with excelize.
type ReportWriter struct{}

// NewReportWriter creates a new xlsx report writer.
func NewReportWriter() *ReportWriter { return &ReportWriter{} }

// WriteReport writes one sheet per report table, with a bold header row.
func (ReportWriter) WriteReport(ctx context.Context, path string, report secondary.Report) error {
	if len(report.Sheets) == 0 {
		return fmt.Errorf("report has no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	used := map[string]bool{}
	for i, s := range report.Sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := routing.SanitizeName(s.Name)
		if name == "" || used[name] {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		used[name] = true

		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		header := make([]any, len(s.Header))
		for j, h := range s.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", name, err)
		}
		if len(s.Header) > 0 {
			end, _ := excelize.CoordinatesToCellName(len(s.Header), 1)
			if err := f.SetCellStyle(name, "A1", end, bold); err != nil {
				return fmt.Errorf("failed to style header of %s: %w", name, err)
			}
		}

		for r, row := range s.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			vals := row
			if err := f.SetSheetRow(name, cell, &vals); err != nil {
				return fmt.Errorf("failed to write row %d of %s: %w", r+2, name, err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Ensure ReportWriter implements the interface
var _ secondary.ReportWriter = ReportWriter{}
