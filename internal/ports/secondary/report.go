package secondary

import "context"

// ReportWriter defines the secondary port for tabular report files.
type ReportWriter interface {
	// WriteReport writes every sheet of report to path, replacing the file.
	WriteReport(ctx context.Context, path string, report Report) error
}

// Report is a set of named tables.
type Report struct {
	Sheets []ReportSheet
}

// ReportSheet is one table of a report.
type ReportSheet struct {
	Name   string
	Header []string
	Rows   [][]any
}
