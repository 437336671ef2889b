package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/faultline/internal/core/effects"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/primary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place effect I/O happens.
type EffectExecutor interface {
	// Execute runs effs for rec, the record state after the transition.
	Execute(ctx context.Context, rec incident.Record, effs []effects.Effect) error
}

// DefaultEffectExecutor implements EffectExecutor with real I/O.
type DefaultEffectExecutor struct {
	routing primary.RoutingService
	logger  *zap.Logger
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
func NewEffectExecutor(routing primary.RoutingService, logger *zap.Logger) *DefaultEffectExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultEffectExecutor{routing: routing, logger: logger}
}

// Execute processes a slice of effects, executing each in sequence.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, rec incident.Record, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, rec, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, rec incident.Record, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.RouteEffect:
		if e.routing == nil {
			return fmt.Errorf("no routing service for position %s", typed.Position)
		}
		return e.routing.Route(ctx, rec, typed.Position)
	case effects.CompositeEffect:
		return e.Execute(ctx, rec, typed.Effects)
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		e.executeLog(typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeLog(eff effects.LogEffect) {
	fields := make([]zap.Field, 0, len(eff.Fields))
	for k, v := range eff.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch eff.Level {
	case "debug":
		e.logger.Debug(eff.Message, fields...)
	case "warn":
		e.logger.Warn(eff.Message, fields...)
	case "error":
		e.logger.Error(eff.Message, fields...)
	default:
		e.logger.Info(eff.Message, fields...)
	}
}
