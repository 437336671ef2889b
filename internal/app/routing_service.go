package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/faultline/internal/authz"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/core/routing"
	"github.com/example/faultline/internal/ports/primary"
	"github.com/example/faultline/internal/ports/secondary"
)

// RoutingOptions tunes the routing service.
type RoutingOptions struct {
	Timeout     time.Duration // Per sub-store call; 0 means no extra deadline
	MaxAttempts int           // Outbox entries are abandoned after this many tries; 0 means never
	Auth        Authorizer    // Gates Replay; nil allows it
}

// RoutingServiceImpl implements the RoutingService interface.
type RoutingServiceImpl struct {
	store     secondary.IncidentStore
	subStores secondary.SubStores
	outbox    secondary.RoutingOutbox
	opts      RoutingOptions
	logger    *zap.Logger
}

// NewRoutingService creates a new RoutingService with injected dependencies.
// outbox may be nil, in which case failed copies are only logged.
func NewRoutingService(
	store secondary.IncidentStore,
	subStores secondary.SubStores,
	outbox secondary.RoutingOutbox,
	opts RoutingOptions,
	logger *zap.Logger,
) *RoutingServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingServiceImpl{
		store:     store,
		subStores: subStores,
		outbox:    outbox,
		opts:      opts,
		logger:    logger,
	}
}

// Route copies rec into the sub-store of position. An empty position or
// the "no route" choice is a no-op.
func (s *RoutingServiceImpl) Route(ctx context.Context, rec incident.Record, position string) error {
	target, err := routing.Resolve(position)
	if errors.Is(err, routing.ErrNoTarget) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.deliver(ctx, target, rec); err != nil {
		key := rec.Key().String()
		s.logger.Warn("routing copy failed",
			zap.String("incident", key),
			zap.String("position", target.Position),
			zap.String("sub_store", target.Name),
			zap.Error(err))
		if s.outbox != nil {
			if oerr := s.outbox.Create(ctx, &secondary.RoutingAttemptRecord{
				IncidentKey: key,
				Position:    target.Position,
				SubStore:    target.Name,
				LastError:   err.Error(),
			}); oerr != nil {
				s.logger.Error("failed to record routing attempt", zap.String("incident", key), zap.Error(oerr))
			}
		}
		return fmt.Errorf("failed to route incident %s to %s: %w", key, target.Name, err)
	}

	s.logger.Info("incident routed",
		zap.String("incident", rec.Key().String()),
		zap.String("sub_store", target.Name))
	return nil
}

// Replay retries pending outbox entries against the current record state.
func (s *RoutingServiceImpl) Replay(ctx context.Context, limit int) (*primary.ReplayResponse, error) {
	if s.opts.Auth != nil {
		if err := s.opts.Auth.Authorize(ctx, authz.ActionReplay); err != nil {
			return nil, err
		}
	}
	if s.outbox == nil {
		return &primary.ReplayResponse{}, nil
	}
	attempts, err := s.outbox.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list routing outbox: %w", err)
	}
	resp := &primary.ReplayResponse{}
	if len(attempts) == 0 {
		return resp, nil
	}

	sctx, cancel := s.storeCtx(ctx)
	rows, err := s.store.ListAll(sctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	for _, a := range attempts {
		tries := a.Attempts + 1
		err := s.replayOne(ctx, rows, a)
		if err == nil {
			if merr := s.outbox.MarkDelivered(ctx, a.ID); merr != nil {
				return resp, fmt.Errorf("failed to mark %s delivered: %w", a.ID, merr)
			}
			resp.Delivered++
			continue
		}

		if merr := s.outbox.MarkFailed(ctx, a.ID, err.Error(), s.opts.MaxAttempts); merr != nil {
			return resp, fmt.Errorf("failed to mark %s failed: %w", a.ID, merr)
		}
		if s.opts.MaxAttempts > 0 && tries >= s.opts.MaxAttempts {
			resp.Abandoned++
			s.logger.Error("routing attempt abandoned",
				zap.String("attempt", a.ID),
				zap.String("incident", a.IncidentKey),
				zap.Error(err))
		} else {
			resp.Failed++
			s.logger.Warn("routing replay failed",
				zap.String("attempt", a.ID),
				zap.String("incident", a.IncidentKey),
				zap.Error(err))
		}
	}
	return resp, nil
}

func (s *RoutingServiceImpl) replayOne(ctx context.Context, rows []incident.Row, a *secondary.RoutingAttemptRecord) error {
	key := incident.ParseKey(a.IncidentKey)
	hits := key.FindAll(rows)
	switch {
	case len(hits) == 0:
		return fmt.Errorf("incident %s: %w", a.IncidentKey, secondary.ErrNotFound)
	case len(hits) > 1:
		return secondary.AmbiguousKey(key, len(hits))
	}
	rec, err := incident.FromRow(rows[hits[0]])
	if err != nil {
		return fmt.Errorf("incident %s cannot be read: %w", a.IncidentKey, err)
	}
	target, err := routing.Resolve(a.Position)
	if err != nil {
		return err
	}
	return s.deliver(ctx, target, rec)
}

// Pending lists outbox entries awaiting replay.
func (s *RoutingServiceImpl) Pending(ctx context.Context, limit int) ([]*primary.RoutingAttempt, error) {
	if s.outbox == nil {
		return nil, nil
	}
	records, err := s.outbox.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list routing outbox: %w", err)
	}
	out := make([]*primary.RoutingAttempt, len(records))
	for i, r := range records {
		out[i] = &primary.RoutingAttempt{
			ID:          r.ID,
			IncidentKey: r.IncidentKey,
			Position:    r.Position,
			SubStore:    r.SubStore,
			Attempts:    r.Attempts,
			LastError:   r.LastError,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt,
		}
	}
	return out, nil
}

// deliver ensures the sub-store exists and upserts the copy.
func (s *RoutingServiceImpl) deliver(ctx context.Context, target routing.Target, rec incident.Record) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.subStores.Ensure(sctx, target.Name, target.Header); err != nil {
		return fmt.Errorf("failed to ensure sub-store %s: %w", target.Name, err)
	}
	if err := s.subStores.Upsert(sctx, target.Name, rec.ToRow()); err != nil {
		return fmt.Errorf("failed to copy into %s: %w", target.Name, err)
	}
	return nil
}

func (s *RoutingServiceImpl) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// Ensure RoutingServiceImpl implements the interface
var _ primary.RoutingService = (*RoutingServiceImpl)(nil)
