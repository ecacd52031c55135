// Package storage defines the persistence interfaces consumed by the
// replication engine and workflow actions.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// EventStore persists the append-only aggregate event logs.
type EventStore interface {
	// Append stores an event, assigning ID and CreatedAt. Events are never
	// mutated or deleted once appended.
	Append(ctx context.Context, evt event.Event) (event.Event, error)
	// ListByEntity returns the aggregate's full ordered log: ascending
	// CreatedAt, ties broken by ID. The view is total, never a partial
	// page.
	ListByEntity(ctx context.Context, ref entity.Ref) ([]event.Event, error)
}

// EntityStore persists aggregate records. The status column is only a cache
// of the last completed replication.
type EntityStore interface {
	Get(ctx context.Context, ref entity.Ref) (entity.Aggregate, error)
	Put(ctx context.Context, agg entity.Aggregate) (entity.Aggregate, error)
	Update(ctx context.Context, agg entity.Aggregate) (entity.Aggregate, error)
	Exists(ctx context.Context, ref entity.Ref) (bool, error)
}

// StatusEntry is one cached derived status.
type StatusEntry struct {
	Ref        entity.Ref
	Status     string
	ComputedAt time.Time
}

// StatusCache stores replay-derived statuses for cheap reads.
type StatusCache interface {
	SetStatus(ctx context.Context, entry StatusEntry) error
	GetStatus(ctx context.Context, ref entity.Ref) (StatusEntry, error)
}
