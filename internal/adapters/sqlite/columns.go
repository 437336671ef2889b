// Package sqlite contains SQLite implementations of the store ports.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/secondary"
)

// columnList is the SELECT/INSERT list of every incident column in store order.
var columnList = func() string {
	names := make([]string, len(incident.Columns))
	for i, c := range incident.Columns {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}()

var placeholders = strings.TrimSuffix(strings.Repeat("?, ", len(incident.Columns)), ", ")

var knownColumns = func() map[incident.Column]bool {
	m := make(map[incident.Column]bool, len(incident.Columns))
	for _, c := range incident.Columns {
		m[c] = true
	}
	return m
}()

// rowValues returns row's values in column order.
func rowValues(row incident.Row) []any {
	vals := make([]any, len(incident.Columns))
	for i, c := range incident.Columns {
		vals[i] = row.Get(c)
	}
	return vals
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRow reads the columns of columnList, preceded by extra destinations.
func scanRow(s scanner, extra ...any) (incident.Row, error) {
	vals := make([]sql.NullString, len(incident.Columns))
	dest := make([]any, 0, len(extra)+len(vals))
	dest = append(dest, extra...)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	row := make(incident.Row, len(incident.Columns))
	for i, c := range incident.Columns {
		row[c] = vals[i].String
	}
	return row, nil
}

// classify wraps lock contention as transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("failed to %s: %w: %w", op, secondary.ErrTransient, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
