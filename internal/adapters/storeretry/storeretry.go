// Package storeretry decorates an incident store with retries of transient failures.
package storeretry

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/secondary"
)

// Options tunes the backoff.
type Options struct {
	Attempts  uint64 // Retries after the first try
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Store retries calls of the wrapped store that fail with secondary.ErrTransient.
// Not-found and conflict results are returned immediately.
type Store struct {
	next   secondary.IncidentStore
	opts   Options
	logger *zap.Logger
}

// New wraps next.
func New(next secondary.IncidentStore, opts Options, logger *zap.Logger) *Store {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{next: next, opts: opts, logger: logger}
}

func (s *Store) backoff() retry.Backoff {
	b := retry.NewExponential(s.opts.BaseDelay)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(s.opts.MaxDelay, b)
	return retry.WithMaxRetries(s.opts.Attempts, b)
}

func (s *Store) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && errors.Is(err, secondary.ErrTransient) {
			s.logger.Warn("transient store failure",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

// ListAll lists rows, retrying transient failures.
func (s *Store) ListAll(ctx context.Context) ([]incident.Row, error) {
	var rows []incident.Row
	err := s.do(ctx, "list", func(ctx context.Context) error {
		var err error
		rows, err = s.next.ListAll(ctx)
		return err
	})
	return rows, err
}

// AppendRow appends a row, retrying transient failures.
func (s *Store) AppendRow(ctx context.Context, row incident.Row) error {
	return s.do(ctx, "append", func(ctx context.Context) error {
		return s.next.AppendRow(ctx, row)
	})
}

// UpdateFields applies a conditional update, retrying transient failures.
// Each retry re-resolves the key and re-checks the precondition.
func (s *Store) UpdateFields(ctx context.Context, req secondary.UpdateRequest) error {
	return s.do(ctx, "update", func(ctx context.Context) error {
		return s.next.UpdateFields(ctx, req)
	})
}

// Ensure Store implements the interface
var _ secondary.IncidentStore = (*Store)(nil)
