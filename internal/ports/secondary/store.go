// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/faultline/internal/core/incident"
)

// Store errors. Adapters wrap them with context; callers test with errors.Is.
var (
	// ErrNotFound means no row matched the key at write time.
	ErrNotFound = errors.New("incident not found")
	// ErrAmbiguous means more than one row matched a natural key. It is
	// always wrapped together with ErrNotFound.
	ErrAmbiguous = errors.New("ambiguous incident key")
	// ErrConflict means the row no longer satisfies the update precondition.
	ErrConflict = errors.New("incident changed concurrently")
	// ErrTransient marks I/O failures that may succeed on retry.
	ErrTransient = errors.New("transient store failure")
)

// AmbiguousKey returns the error for a natural key matching n rows.
func AmbiguousKey(key incident.MatchKey, n int) error {
	return &ambiguousError{key: key.String(), n: n}
}

type ambiguousError struct {
	key string
	n   int
}

func (e *ambiguousError) Error() string {
	return fmt.Sprintf("incident key %s matches %d rows", e.key, e.n)
}

func (e *ambiguousError) Is(target error) bool {
	return target == ErrNotFound || target == ErrAmbiguous
}

// IncidentStore defines the secondary port for the shared incident log.
type IncidentStore interface {
	// ListAll returns every row in store order.
	ListAll(ctx context.Context) ([]incident.Row, error)

	// AppendRow adds one row atomically.
	AppendRow(ctx context.Context, row incident.Row) error

	// UpdateFields re-resolves req.Key, checks req.Expect and applies req.Set
	// in order. Returns ErrNotFound (possibly wrapping ErrAmbiguous) or
	// ErrConflict without writing anything when the checks fail.
	UpdateFields(ctx context.Context, req UpdateRequest) error
}

// UpdateRequest is one conditional update.
type UpdateRequest struct {
	Key    incident.MatchKey
	Expect incident.Precondition
	Set    []incident.FieldWrite
}

// SubStores defines the secondary port for per-position copies of incidents.
type SubStores interface {
	// Ensure creates the named sub-store with header when it does not exist.
	Ensure(ctx context.Context, name string, header []string) error

	// Upsert writes row into the named sub-store, replacing an earlier copy
	// with the same id. Rows without an id are appended.
	Upsert(ctx context.Context, name string, row incident.Row) error

	// List returns the rows of the named sub-store.
	List(ctx context.Context, name string) ([]incident.Row, error)
}
