package event

import (
	"context"
	"fmt"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

// Store defines the interface for appending events to an aggregate log.
// Implementations assign ID and CreatedAt on append.
type Store interface {
	Append(ctx context.Context, evt Event) (Event, error)
}

// Emitter appends saga events to aggregate logs.
type Emitter struct {
	store Store
}

// NewEmitter creates a new event emitter.
func NewEmitter(store Store) *Emitter {
	return &Emitter{store: store}
}

// EmitInput describes the input for emitting an event.
type EmitInput struct {
	Entity      entity.Ref
	Type        Type
	Annotations map[string]string
}

// Emit appends an event to the referenced aggregate's log and returns the
// stored event with ID and CreatedAt assigned.
func (e *Emitter) Emit(ctx context.Context, input EmitInput) (Event, error) {
	if e == nil || e.store == nil {
		return Event{}, fmt.Errorf("event store is not configured")
	}
	if !input.Type.IsValid() {
		return Event{}, apperrors.New(apperrors.CodeEventTypeEmpty, "event type is required")
	}
	if err := input.Entity.Validate(); err != nil {
		return Event{}, apperrors.Wrap(apperrors.CodeEventEntityEmpty, "event entity ref is invalid", err)
	}

	evt := Event{
		Type:        input.Type,
		Entity:      input.Entity,
		Annotations: input.Annotations,
	}
	return e.store.Append(ctx, evt)
}
