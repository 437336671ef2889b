// Package sheet implements the store ports on an .xlsx workbook laid out like
// the original shared spreadsheet: one log sheet with a Korean header row
// plus one sheet per position.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/secondary"
)

const (
	lockRetry   = 20 * time.Millisecond
	lockTimeout = 30 * time.Second
)

// Workbook implements secondary.IncidentStore and secondary.SubStores.
// The file is reopened on every call so edits made by other tools are seen,
// and every call holds a lock file beside the workbook.
type Workbook struct {
	path     string
	logSheet string
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewWorkbook creates a workbook store for path. logSheet names the main log.
func NewWorkbook(path, logSheet string, logger *zap.Logger) *Workbook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workbook{path: path, logSheet: logSheet, logger: logger}
}

// Path returns the workbook file.
func (w *Workbook) Path() string { return w.path }

// layout maps the columns of one sheet to 1-based column numbers.
type layout struct {
	cols  map[incident.Column]int
	width int
}

func readLayout(header []string) layout {
	l := layout{cols: map[incident.Column]int{}, width: len(header)}
	for i, h := range header {
		if c, ok := incident.ColumnForHeader(h); ok {
			if _, dup := l.cols[c]; !dup {
				l.cols[c] = i + 1
			}
		}
	}
	return l
}

// ensureColumn appends a header cell for c when the sheet lacks it.
func (l *layout) ensureColumn(f *excelize.File, sheet string, c incident.Column) (int, error) {
	if n, ok := l.cols[c]; ok {
		return n, nil
	}
	l.width++
	cell, err := excelize.CoordinatesToCellName(l.width, 1)
	if err != nil {
		return 0, err
	}
	if err := f.SetCellValue(sheet, cell, c.Header()); err != nil {
		return 0, err
	}
	l.cols[c] = l.width
	return l.width, nil
}

type sheetRow struct {
	line int // 1-based sheet row
	row  incident.Row
}

func readRows(f *excelize.File, sheet string) (layout, []sheetRow, error) {
	raw, err := f.GetRows(sheet)
	if err != nil {
		return layout{}, nil, err
	}
	if len(raw) == 0 {
		return layout{cols: map[incident.Column]int{}}, nil, nil
	}
	l := readLayout(raw[0])
	var rows []sheetRow
	for i, cells := range raw[1:] {
		row := incident.Row{}
		empty := true
		for c, n := range l.cols {
			if n-1 < len(cells) {
				v := cells[n-1]
				row[c] = v
				if strings.TrimSpace(v) != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		rows = append(rows, sheetRow{line: i + 2, row: row})
	}
	return l, rows, nil
}

func writeHeader(f *excelize.File, sheet string, header []string) error {
	vals := make([]any, len(header))
	for i, h := range header {
		vals[i] = h
	}
	return f.SetSheetRow(sheet, "A1", &vals)
}

func hasSheet(f *excelize.File, name string) bool {
	idx, err := f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// open loads the workbook, or builds an unsaved one with an empty log sheet
// when the file is missing.
func (w *Workbook) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(w.path)
	if err == nil {
		return f, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, classify("open workbook", err)
	}

	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", w.logSheet); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("failed to name log sheet: %w", err)
	}
	if err := writeHeader(f, w.logSheet, incident.Headers()); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("failed to write header: %w", err)
	}
	return f, true, nil
}

// lock takes the lock file next to the workbook so that other faultline
// processes and other Workbook values on the same path are serialized.
func (w *Workbook) lock(ctx context.Context, exclusive bool) (func(), error) {
	lk := flock.New(w.path + ".lock")
	lctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	var ok bool
	var err error
	if exclusive {
		ok, err = lk.TryLockContext(lctx, lockRetry)
	} else {
		ok, err = lk.TryRLockContext(lctx, lockRetry)
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	if err != nil || !ok {
		w.logger.Warn("workbook lock not acquired", zap.String("lock", lk.Path()), zap.Error(err))
		return nil, fmt.Errorf("failed to lock workbook %s: %w", w.path, secondary.ErrTransient)
	}
	return func() {
		if err := lk.Unlock(); err != nil {
			w.logger.Warn("failed to release workbook lock", zap.String("lock", lk.Path()), zap.Error(err))
		}
	}, nil
}

// with runs fn against a freshly opened workbook and saves when fn reports changes.
// Writers hold the exclusive lock from open through save.
func (w *Workbook) with(ctx context.Context, write bool, fn func(f *excelize.File) (bool, error)) error {
	return w.withFile(ctx, write, func(f *excelize.File, _ bool) (bool, error) {
		return fn(f)
	})
}

func (w *Workbook) withFile(ctx context.Context, write bool, fn func(f *excelize.File, fresh bool) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	switch _, err := os.Stat(w.path); {
	case write:
		if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
			return fmt.Errorf("failed to create workbook directory: %w", err)
		}
		unlock, err := w.lock(ctx, true)
		if err != nil {
			return err
		}
		defer unlock()
	case err == nil:
		unlock, err := w.lock(ctx, false)
		if err != nil {
			return err
		}
		defer unlock()
	}
	// A reader of a missing workbook works on the in-memory copy and
	// leaves the filesystem untouched.

	f, fresh, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if !hasSheet(f, w.logSheet) {
		if _, err := f.NewSheet(w.logSheet); err != nil {
			return fmt.Errorf("failed to create log sheet: %w", err)
		}
		if err := writeHeader(f, w.logSheet, incident.Headers()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		fresh = true
	}

	dirty, err := fn(f, fresh)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if !write {
		return fmt.Errorf("read-only workbook access reported changes")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.save(f)
}

// save writes f to a temporary file in the workbook directory and renames it
// over the workbook, so readers never see a half-written file.
func (w *Workbook) save(f *excelize.File) error {
	tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return classify("create temporary workbook", err)
	}
	name := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(name)
		return classify(op, err)
	}

	if _, err := f.WriteTo(tmp); err != nil {
		return fail("save workbook", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail("save workbook", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("save workbook", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return classify("save workbook", err)
	}
	if err := os.Rename(name, w.path); err != nil {
		os.Remove(name)
		return classify("replace workbook", err)
	}
	return nil
}

// Create writes a workbook holding only the log sheet header when none exists,
// and adds the log sheet to an existing workbook that lacks it.
func (w *Workbook) Create(ctx context.Context) error {
	return w.withFile(ctx, true, func(_ *excelize.File, fresh bool) (bool, error) {
		return fresh, nil
	})
}

// ListAll returns every non-empty row of the log sheet.
func (w *Workbook) ListAll(ctx context.Context) ([]incident.Row, error) {
	var out []incident.Row
	err := w.with(ctx, false, func(f *excelize.File) (bool, error) {
		_, rows, err := readRows(f, w.logSheet)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", w.logSheet, err)
		}
		for _, r := range rows {
			out = append(out, r.row)
		}
		return false, nil
	})
	return out, err
}

// AppendRow writes row below the last used row of the log sheet.
func (w *Workbook) AppendRow(ctx context.Context, row incident.Row) error {
	return w.with(ctx, true, func(f *excelize.File) (bool, error) {
		return true, appendTo(f, w.logSheet, row)
	})
}

func appendTo(f *excelize.File, sheet string, row incident.Row) error {
	raw, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	var l layout
	if len(raw) == 0 {
		if err := writeHeader(f, sheet, incident.Headers()); err != nil {
			return err
		}
		l = readLayout(incident.Headers())
		raw = [][]string{incident.Headers()}
	} else {
		l = readLayout(raw[0])
	}
	return writeCells(f, sheet, &l, len(raw)+1, row)
}

func writeCells(f *excelize.File, sheet string, l *layout, line int, row incident.Row) error {
	for _, c := range incident.Columns {
		v, ok := row[c]
		if !ok {
			continue
		}
		n, err := l.ensureColumn(f, sheet, c)
		if err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(n, line)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to write %s: %w", cell, err)
		}
	}
	return nil
}

// UpdateFields re-reads the log sheet, resolves the key, checks the
// precondition and writes req.Set cell by cell in order.
func (w *Workbook) UpdateFields(ctx context.Context, req secondary.UpdateRequest) error {
	if req.Key.IsZero() {
		return fmt.Errorf("%w: empty key", secondary.ErrNotFound)
	}
	return w.with(ctx, true, func(f *excelize.File) (bool, error) {
		l, rows, err := readRows(f, w.logSheet)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", w.logSheet, err)
		}

		var hits []sheetRow
		for _, r := range rows {
			if req.Key.Matches(r.row) {
				hits = append(hits, r)
			}
		}
		switch len(hits) {
		case 0:
			return false, fmt.Errorf("%w: %s", secondary.ErrNotFound, req.Key)
		case 1:
		default:
			return false, secondary.AmbiguousKey(req.Key, len(hits))
		}

		target := hits[0]
		if !req.Expect.Matches(target.row) {
			w.logger.Info("update precondition failed",
				zap.String("incident", req.Key.String()),
				zap.Int("line", target.line),
				zap.String("status", target.row.Get(incident.ColStatus)))
			return false, fmt.Errorf("%w: %s", secondary.ErrConflict, req.Key)
		}

		for _, wr := range req.Set {
			n, err := l.ensureColumn(f, w.logSheet, wr.Column)
			if err != nil {
				return false, err
			}
			cell, err := excelize.CoordinatesToCellName(n, target.line)
			if err != nil {
				return false, err
			}
			if err := f.SetCellValue(w.logSheet, cell, wr.Value); err != nil {
				return false, fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
		return len(req.Set) > 0, nil
	})
}

// Ensure creates the named position sheet with header when missing.
func (w *Workbook) Ensure(ctx context.Context, name string, header []string) error {
	if name == w.logSheet {
		return fmt.Errorf("position sheet %q collides with the log sheet", name)
	}
	return w.with(ctx, true, func(f *excelize.File) (bool, error) {
		if hasSheet(f, name) {
			return false, nil
		}
		if _, err := f.NewSheet(name); err != nil {
			return false, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		return true, writeHeader(f, name, header)
	})
}

// Upsert replaces the row with the same id in the named sheet, or appends.
func (w *Workbook) Upsert(ctx context.Context, name string, row incident.Row) error {
	return w.with(ctx, true, func(f *excelize.File) (bool, error) {
		if !hasSheet(f, name) {
			return false, fmt.Errorf("position sheet %s does not exist", name)
		}
		if id := strings.TrimSpace(row.Get(incident.ColID)); id != "" {
			l, rows, err := readRows(f, name)
			if err != nil {
				return false, fmt.Errorf("failed to read %s: %w", name, err)
			}
			for _, r := range rows {
				if strings.TrimSpace(r.row.Get(incident.ColID)) == id {
					return true, writeCells(f, name, &l, r.line, row)
				}
			}
		}
		return true, appendTo(f, name, row)
	})
}

// List returns the rows of the named position sheet.
func (w *Workbook) List(ctx context.Context, name string) ([]incident.Row, error) {
	var out []incident.Row
	err := w.with(ctx, false, func(f *excelize.File) (bool, error) {
		if !hasSheet(f, name) {
			return false, nil
		}
		_, rows, err := readRows(f, name)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", name, err)
		}
		for _, r := range rows {
			out = append(out, r.row)
		}
		return false, nil
	})
	return out, err
}

// classify marks file-level I/O failures other than a missing file as transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *fs.PathError
	if errors.As(err, &pe) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to %s: %w: %w", op, secondary.ErrTransient, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// Ensure Workbook implements the interfaces
var (
	_ secondary.IncidentStore = (*Workbook)(nil)
	_ secondary.SubStores     = (*Workbook)(nil)
)
