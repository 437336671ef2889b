// Package effects defines effect types as data structures representing I/O operations.
// Planners in the functional core return effects; the app layer interprets them.
package effects

// Effect is the base interface for all effects.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string // "debug", "info", "warn", "error"
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// RouteEffect asks the shell to copy an incident into the sub-store of Position.
// It runs after the primary write and never rolls it back.
type RouteEffect struct {
	Position   string
	IncidentID string // Stable id, or the natural key string for legacy rows
}

func (e RouteEffect) EffectType() string { return "route" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }
