package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/faultline/internal/authz"
	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/core/rollup"
	"github.com/example/faultline/internal/ports/primary"
	"github.com/example/faultline/internal/ports/secondary"
)

// DefaultRecentLimit caps RecentOpen when no limit is given.
const DefaultRecentLimit = 10

// Authorizer decides whether the actor on ctx may perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, action authz.Action) error
}

// IncidentOptions tunes the incident service.
type IncidentOptions struct {
	Timeout     time.Duration // Per store call; 0 means no extra deadline
	AllowReopen bool
	Clock       func() time.Time
}

// IncidentServiceImpl implements the IncidentService interface.
type IncidentServiceImpl struct {
	store     secondary.IncidentStore
	logWriter secondary.LogWriter
	executor  EffectExecutor
	auth      Authorizer
	opts      IncidentOptions
	logger    *zap.Logger
}

// NewIncidentService creates a new IncidentService with injected dependencies.
// logWriter, executor and auth may be nil.
func NewIncidentService(
	store secondary.IncidentStore,
	logWriter secondary.LogWriter,
	executor EffectExecutor,
	auth Authorizer,
	opts IncidentOptions,
	logger *zap.Logger,
) *IncidentServiceImpl {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncidentServiceImpl{
		store:     store,
		logWriter: logWriter,
		executor:  executor,
		auth:      auth,
		opts:      opts,
		logger:    logger,
	}
}

// Intake files a new incident as Pending.
func (s *IncidentServiceImpl) Intake(ctx context.Context, req incident.IntakeRequest) (*primary.IntakeResponse, error) {
	if err := s.authorize(ctx, authz.ActionIntake); err != nil {
		return nil, err
	}

	id, err := incident.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate incident ID: %w", err)
	}
	rec, err := incident.NewIntakeRecord(req, id, s.opts.Clock())
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.AppendRow(sctx, rec.ToRow()); err != nil {
		return nil, fmt.Errorf("failed to append incident: %w", err)
	}

	s.logger.Info("incident filed",
		zap.String("id", id),
		zap.String("position", rec.Position),
		zap.String("equipment", rec.Equipment))
	if s.logWriter != nil {
		if err := s.logWriter.LogCreate(ctx, id); err != nil {
			s.logger.Warn("failed to write audit entry", zap.String("id", id), zap.Error(err))
		}
	}

	return &primary.IntakeResponse{Record: rec}, nil
}

// List returns the working set narrowed by filter.
func (s *IncidentServiceImpl) List(ctx context.Context, filter rollup.Filter) (*primary.ListResponse, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &primary.ListResponse{
		Records: filter.Apply(snap.records),
		Dropped: snap.dropped,
	}, nil
}

// Get returns the single record addressed by key.
func (s *IncidentServiceImpl) Get(ctx context.Context, key incident.MatchKey) (*incident.Record, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, _, err := snap.find(key)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Start moves an incident to InProgress, or reassigns its inspector.
func (s *IncidentServiceImpl) Start(ctx context.Context, req primary.StartRequest) (*primary.TransitionResponse, error) {
	if err := s.authorize(ctx, authz.ActionStart); err != nil {
		return nil, err
	}
	return s.transition(ctx, req.Key, req.RetryOnConflict, func(rec incident.Record) (incident.TransitionPlan, error) {
		return incident.PlanStart(rec, incident.StartRequest{
			Inspector:      req.Inspector,
			RoutedPosition: req.RoutedPosition,
		})
	})
}

// Complete moves an InProgress incident to Done.
func (s *IncidentServiceImpl) Complete(ctx context.Context, req primary.CompleteRequest) (*primary.TransitionResponse, error) {
	if err := s.authorize(ctx, authz.ActionComplete); err != nil {
		return nil, err
	}
	return s.transition(ctx, req.Key, req.RetryOnConflict, func(rec incident.Record) (incident.TransitionPlan, error) {
		return incident.PlanComplete(rec, incident.CompleteRequest{ResolutionNotes: req.ResolutionNotes}, s.opts.Clock())
	})
}

// QuickComplete closes an incident in one step: Start without routing
// (skipped when the record is already in progress with the same inspector)
// followed by Complete. Each step is its own conditional write.
func (s *IncidentServiceImpl) QuickComplete(ctx context.Context, req primary.QuickCompleteRequest) (*primary.TransitionResponse, error) {
	if err := s.authorize(ctx, authz.ActionStart); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, authz.ActionComplete); err != nil {
		return nil, err
	}
	if req.ResolutionNotes == nil {
		return nil, fmt.Errorf("%w: resolution notes must be provided to complete incident %s",
			incident.ErrInvalidTransition, req.Key)
	}

	current, err := s.Get(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	from := current.Status
	key := current.Key()
	retried := false

	inspector := strings.TrimSpace(req.Inspector)
	needsStart := current.Status == incident.StatusPending ||
		(current.Status == incident.StatusInProgress && inspector != "" && inspector != current.Inspector)
	if needsStart {
		started, err := s.Start(ctx, primary.StartRequest{
			Key:             key,
			Inspector:       inspector,
			RetryOnConflict: req.RetryOnConflict,
		})
		if err != nil {
			return nil, err
		}
		retried = started.Retried
	}

	done, err := s.Complete(ctx, primary.CompleteRequest{
		Key:             key,
		ResolutionNotes: req.ResolutionNotes,
		RetryOnConflict: req.RetryOnConflict,
	})
	if err != nil {
		return nil, err
	}
	done.From = from
	done.Retried = done.Retried || retried
	return done, nil
}

// Reopen moves a Done incident back to InProgress.
func (s *IncidentServiceImpl) Reopen(ctx context.Context, req primary.ReopenRequest) (*primary.TransitionResponse, error) {
	if !s.opts.AllowReopen {
		return nil, ErrReopenDisabled
	}
	if err := s.authorize(ctx, authz.ActionReopen); err != nil {
		return nil, err
	}
	return s.transition(ctx, req.Key, false, func(rec incident.Record) (incident.TransitionPlan, error) {
		return incident.PlanReopen(rec, incident.ReopenRequest{
			Inspector: req.Inspector,
			Reason:    req.Reason,
		})
	})
}

// RecentOpen returns open incidents of position (all positions when empty),
// newest first.
func (s *IncidentServiceImpl) RecentOpen(ctx context.Context, position string, limit int) ([]incident.Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	position = strings.TrimSpace(position)
	var out []incident.Record
	for _, rec := range snap.records {
		if !rec.IsOpen() {
			continue
		}
		if position != "" && rec.Position != position {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CompletedHistory returns completed or closed incidents matching filter,
// most recently completed first.
func (s *IncidentServiceImpl) CompletedHistory(ctx context.Context, filter rollup.Filter) ([]incident.Record, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var out []incident.Record
	for _, rec := range snap.records {
		if rec.IsCompleted() && filter.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return finishedAt(out[i]).After(finishedAt(out[j]))
	})
	return out, nil
}

func finishedAt(rec incident.Record) time.Time {
	if rec.CompletedAt != nil {
		return *rec.CompletedAt
	}
	return rec.CreatedAt
}

// Daily returns the intakes and completions of the Seoul day of at.
func (s *IncidentServiceImpl) Daily(ctx context.Context, at time.Time) (*primary.DailyReport, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	report := &primary.DailyReport{Day: datetime.Today(at)}
	for _, rec := range snap.records {
		if datetime.SameDay(rec.CreatedAt, at) {
			report.Received = append(report.Received, rec)
		}
		if rec.CompletedAt != nil && datetime.SameDay(*rec.CompletedAt, at) {
			report.Completed = append(report.Completed, rec)
		}
	}
	return report, nil
}

// BackfillIDs assigns stable ids to legacy rows. Natural keys shared by
// more than one row are reported and left alone.
func (s *IncidentServiceImpl) BackfillIDs(ctx context.Context, dryRun bool) (*primary.BackfillResponse, error) {
	if !dryRun {
		if err := s.authorize(ctx, authz.ActionBackfill); err != nil {
			return nil, err
		}
	}

	rows, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}

	resp := &primary.BackfillResponse{}
	seen := make(map[incident.NaturalKey]bool)
	for _, row := range rows {
		if strings.TrimSpace(row.Get(incident.ColID)) != "" {
			continue
		}
		natural := incident.NaturalKey{
			Reporter:     strings.TrimSpace(row.Get(incident.ColReporter)),
			Equipment:    strings.TrimSpace(row.Get(incident.ColEquipment)),
			Description:  strings.TrimSpace(row.Get(incident.ColDescription)),
			RawCreatedAt: strings.TrimSpace(row.Get(incident.ColCreatedAt)),
		}
		if seen[natural] {
			continue
		}
		seen[natural] = true

		key := incident.MatchKey{Natural: natural}
		if n := len(key.FindAll(rows)); n != 1 {
			resp.Ambiguous = append(resp.Ambiguous, natural)
			s.logger.Warn("skipping ambiguous legacy row", zap.String("key", key.String()), zap.Int("matches", n))
			continue
		}

		id, err := incident.NewID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate incident ID: %w", err)
		}
		if !dryRun {
			if err := s.update(ctx, secondary.UpdateRequest{
				Key:    key,
				Expect: incident.Precondition{incident.ColID: {""}},
				Set:    []incident.FieldWrite{{Column: incident.ColID, Value: id}},
			}); err != nil {
				resp.Failed++
				s.logger.Warn("failed to assign id", zap.String("key", key.String()), zap.Error(err))
				continue
			}
			s.audit(ctx, key.String(), incident.ColID, "", id)
		}
		resp.Assigned = append(resp.Assigned, primary.BackfillAssignment{Key: natural, ID: id})
	}

	s.logger.Info("backfill finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("assigned", len(resp.Assigned)),
		zap.Int("ambiguous", len(resp.Ambiguous)),
		zap.Int("failed", resp.Failed))
	return resp, nil
}

// planFunc computes a transition for the current state of a record.
type planFunc func(rec incident.Record) (incident.TransitionPlan, error)

// transition reads the record, plans and applies one conditional write.
// A conflict or miss at write time is retried once against a fresh read
// when retry is set; otherwise it surfaces as ErrRefreshAndRetry.
func (s *IncidentServiceImpl) transition(ctx context.Context, key incident.MatchKey, retry bool, plan planFunc) (*primary.TransitionResponse, error) {
	retried := false
	for {
		snap, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		rec, row, err := snap.find(key)
		if err != nil {
			return nil, err
		}

		p, err := plan(rec)
		if err != nil {
			return nil, err
		}

		err = s.update(ctx, secondary.UpdateRequest{Key: p.Key, Expect: p.Expect, Set: p.Writes})
		if err != nil {
			if errors.Is(err, secondary.ErrConflict) || errors.Is(err, secondary.ErrNotFound) {
				s.logger.Info("conditional write rejected",
					zap.String("incident", p.Key.String()),
					zap.String("transition", string(p.Transition)),
					zap.Bool("retried", retried),
					zap.Error(err))
				if retry && !retried {
					retried = true
					continue
				}
				return nil, fmt.Errorf("%w: %w", ErrRefreshAndRetry, err)
			}
			return nil, fmt.Errorf("failed to update incident %s: %w", p.Key, err)
		}

		for _, w := range p.Writes {
			s.audit(ctx, p.Key.String(), w.Column, row.Get(w.Column), w.Value)
		}

		resp := &primary.TransitionResponse{
			Record:  p.After,
			From:    p.From,
			To:      p.To,
			Retried: retried,
		}
		if s.executor != nil && len(p.Effects) > 0 {
			if err := s.executor.Execute(ctx, p.After, p.Effects); err != nil {
				s.logger.Warn("transition side effect failed",
					zap.String("incident", p.Key.String()),
					zap.Error(err))
				resp.RoutingFailure = err
			}
		}
		return resp, nil
	}
}

// snapshot is one normalized read of the store.
type snapshot struct {
	rows    []incident.Row
	records []incident.Record
	dropped int
}

// find resolves key against the raw rows so legacy rows whose date cannot
// be parsed are still reported as found-but-unreadable.
func (snap snapshot) find(key incident.MatchKey) (incident.Record, incident.Row, error) {
	if key.IsZero() {
		return incident.Record{}, nil, fmt.Errorf("an incident key is required")
	}
	hits := key.FindAll(snap.rows)
	switch {
	case len(hits) == 0:
		return incident.Record{}, nil, fmt.Errorf("incident %s: %w", key, secondary.ErrNotFound)
	case len(hits) > 1:
		return incident.Record{}, nil, secondary.AmbiguousKey(key, len(hits))
	}
	row := snap.rows[hits[0]]
	rec, err := incident.FromRow(row)
	if err != nil {
		return incident.Record{}, nil, fmt.Errorf("incident %s cannot be read: %w", key, err)
	}
	return rec, row, nil
}

func (s *IncidentServiceImpl) load(ctx context.Context) (snapshot, error) {
	rows, err := s.listAll(ctx)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{rows: rows, records: make([]incident.Record, 0, len(rows))}
	for i, row := range rows {
		rec, err := incident.FromRow(row)
		if err != nil {
			snap.dropped++
			s.logger.Warn("dropping row with unreadable creation date",
				zap.Int("row", i),
				zap.String("raw", row.Get(incident.ColCreatedAt)),
				zap.String("reporter", row.Get(incident.ColReporter)),
				zap.Error(err))
			continue
		}
		snap.records = append(snap.records, rec)
	}
	return snap, nil
}

func (s *IncidentServiceImpl) listAll(ctx context.Context) ([]incident.Row, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rows, err := s.store.ListAll(sctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	return rows, nil
}

func (s *IncidentServiceImpl) update(ctx context.Context, req secondary.UpdateRequest) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.UpdateFields(sctx, req)
}

func (s *IncidentServiceImpl) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

func (s *IncidentServiceImpl) authorize(ctx context.Context, action authz.Action) error {
	if s.auth == nil {
		return nil
	}
	return s.auth.Authorize(ctx, action)
}

func (s *IncidentServiceImpl) audit(ctx context.Context, key string, col incident.Column, oldValue, newValue string) {
	if s.logWriter == nil {
		return
	}
	if err := s.logWriter.LogUpdate(ctx, key, string(col), oldValue, newValue); err != nil {
		s.logger.Warn("failed to write audit entry", zap.String("incident", key), zap.Error(err))
	}
}

// Ensure IncidentServiceImpl implements the interface
var _ primary.IncidentService = (*IncidentServiceImpl)(nil)
