// Package replication implements the event-sourced state replication engine.
//
// Given one newly appended event, the engine reconstructs the owning
// aggregate's entire history, replays it deterministically through the
// domain's state machine, and executes exactly one side-effecting workflow
// step: the one bound to the new event. All prior history is fast-forwarded
// with no external effects, which is what makes redelivery and replay safe.
package replication

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/machine"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/storage"
)

const tracerName = "github.com/louisbranch/orderflow/internal/replication"

// Engine replays aggregate logs through per-domain state machines.
type Engine struct {
	events      storage.EventStore
	entities    storage.EntityStore
	definitions map[entity.Kind]*machine.Definition
	tracer      trace.Tracer
}

// NewEngine creates an engine from an event store, an entity store, and the
// per-domain transition tables constructed at startup.
func NewEngine(events storage.EventStore, entities storage.EntityStore, definitions map[entity.Kind]*machine.Definition) (*Engine, error) {
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if entities == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	if len(definitions) == 0 {
		return nil, fmt.Errorf("at least one machine definition is required")
	}
	for kind, def := range definitions {
		if def == nil {
			return nil, fmt.Errorf("%s machine definition is nil", kind)
		}
		if def.Kind() != kind {
			return nil, fmt.Errorf("%s machine definition registered under %q", def.Kind(), kind)
		}
	}

	return &Engine{
		events:      events,
		entities:    entities,
		definitions: definitions,
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// Replicate recomputes the aggregate referenced by evt.
//
// The full log is fetched and replayed in order on a fresh, disposable state
// machine instance. Only the action bound to evt itself may perform external
// effects; historical actions are invoked with triggering=false and must be
// no-ops. The returned snapshot carries the replay-derived status.
func (e *Engine) Replicate(ctx context.Context, evt event.Event) (entity.Aggregate, error) {
	if err := evt.Entity.Validate(); err != nil {
		return nil, fmt.Errorf("replicate: %w", err)
	}
	if !evt.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeEventTypeEmpty, "replicate: event type is required")
	}

	ctx, span := e.tracer.Start(ctx, "replication.Replicate",
		trace.WithAttributes(
			attribute.String("aggregate.kind", string(evt.Entity.Kind)),
			attribute.String("aggregate.id", evt.Entity.ID),
			attribute.String("event.type", string(evt.Type)),
		),
	)
	defer span.End()

	def, ok := e.definitions[evt.Entity.Kind]
	if !ok {
		return nil, fmt.Errorf("replicate: no machine definition for %s", evt.Entity.Kind)
	}

	snapshot, err := e.entities.Get(ctx, evt.Entity)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.WithMetadata(apperrors.CodeAggregateNotFound,
				fmt.Sprintf("aggregate %s not found", evt.Entity),
				map[string]string{"ref": evt.Entity.String()},
			)
		}
		return nil, fmt.Errorf("resolve aggregate %s: %w", evt.Entity, err)
	}

	log, err := e.events.ListByEntity(ctx, evt.Entity)
	if err != nil {
		return nil, fmt.Errorf("fetch log %s: %w", evt.Entity, err)
	}
	if len(log) == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeAggregateNotFound,
			fmt.Sprintf("aggregate %s has no events", evt.Entity),
			map[string]string{"ref": evt.Entity.String()},
		)
	}

	inst := def.NewInstance()
	inst.SetAggregate(snapshot)

	sawTriggering := false
	for _, entry := range log {
		triggering := entry.ID == evt.ID

		next, action, defined := def.Step(inst.Current(), entry.Type)
		if !defined {
			// Consumed but produces no side effect and leaves state
			// unchanged. A triggering event without a transition is an
			// error the caller must not blindly retry.
			if triggering {
				return nil, apperrors.WithMetadata(apperrors.CodeNoApplicableTransition,
					fmt.Sprintf("no transition for (%s, %s) on %s", inst.Current(), entry.Type, evt.Entity),
					map[string]string{"state": string(inst.Current()), "event": string(entry.Type)},
				)
			}
			continue
		}

		if triggering {
			sawTriggering = true
			inst.MarkTriggering(entry)
		}

		if action != nil {
			updated, actionErr := action.Execute(ctx, inst.Aggregate(), entry, triggering)
			if actionErr != nil {
				inst.ClearTriggering()
				if triggering {
					// Compensation already ran inside the action.
					return nil, actionErr
				}
				// A failure during historical replay means the computed
				// snapshot cannot be trusted; abort rather than swallow.
				return nil, fmt.Errorf("replay %s at event %s: %w", evt.Entity, entry.ID, actionErr)
			}
			inst.SetAggregate(updated)
		}
		inst.ClearTriggering()

		inst.Advance(next)
		if agg := inst.Aggregate(); agg != nil {
			inst.SetAggregate(agg.WithStatusValue(string(next)))
		}
	}

	if !sawTriggering {
		// The log view predates the append that produced evt; surface a
		// plain error so the transport redelivers.
		return nil, fmt.Errorf("triggering event %s not yet visible in %s log", evt.ID, evt.Entity)
	}

	return inst.Aggregate(), nil
}
