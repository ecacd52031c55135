// Package machine provides the declarative per-domain state machine used to
// derive aggregate status from event replay.
//
// A Definition is a compile-time-constant transition table for one aggregate
// domain. An Instance is ephemeral: created fresh for every replication call
// and discarded immediately after, so replay never needs locking.
package machine

import (
	"context"
	"fmt"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

// State is one value from a domain's finite state set. Domain status
// constants double as machine states.
type State string

// Action is one side-effecting saga step bound to a transition.
//
// Execute is invoked for every replayed event whose transition carries the
// action, but it must only perform external effects (remote calls, entity
// writes, event emission) when triggering is true. For historical events it
// returns the snapshot unchanged.
type Action interface {
	Execute(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error)

// Execute implements Action.
func (f ActionFunc) Execute(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	return f(ctx, snapshot, evt, triggering)
}

// Transition maps (source state, event type) to a target state and an
// optional action.
type Transition struct {
	Source State
	Event  event.Type
	Target State
	Action Action
}

type transitionKey struct {
	source    State
	eventType event.Type
}

// Definition is the immutable transition table for one aggregate domain.
// The table is a partial function: an event type arriving in a state with no
// transition defined is skipped during replay.
type Definition struct {
	kind    entity.Kind
	initial State
	table   map[transitionKey]Transition
}

// NewDefinition validates and builds a transition table.
//
// Every domain defines exactly one initial state, and no two transitions may
// share the same (source, event) key.
func NewDefinition(kind entity.Kind, initial State, transitions []Transition) (*Definition, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown aggregate kind %q", kind)
	}
	if initial == "" {
		return nil, apperrors.New(apperrors.CodeMachineInitialStateEmpty, "machine initial state is required")
	}

	table := make(map[transitionKey]Transition, len(transitions))
	for _, tr := range transitions {
		if tr.Source == "" || tr.Target == "" {
			return nil, fmt.Errorf("%s machine: transition states are required", kind)
		}
		if !tr.Event.IsValid() {
			return nil, fmt.Errorf("%s machine: transition event type is required", kind)
		}
		key := transitionKey{source: tr.Source, eventType: tr.Event}
		if _, exists := table[key]; exists {
			return nil, apperrors.WithMetadata(
				apperrors.CodeMachineDuplicateTransition,
				fmt.Sprintf("%s machine: duplicate transition (%s, %s)", kind, tr.Source, tr.Event),
				map[string]string{"source": string(tr.Source), "event": string(tr.Event)},
			)
		}
		table[key] = tr
	}

	return &Definition{kind: kind, initial: initial, table: table}, nil
}

// Kind returns the aggregate domain this definition covers.
func (d *Definition) Kind() entity.Kind {
	return d.kind
}

// Initial returns the domain's initial state.
func (d *Definition) Initial() State {
	return d.initial
}

// Step computes the transition for (current, eventType). The third return is
// false when the table defines no transition for the pair; the executor
// performs no I/O.
func (d *Definition) Step(current State, eventType event.Type) (State, Action, bool) {
	tr, ok := d.table[transitionKey{source: current, eventType: eventType}]
	if !ok {
		return current, nil, false
	}
	return tr.Target, tr.Action, true
}

// IsTerminal reports whether the state has no outgoing transition for any
// event type.
func (d *Definition) IsTerminal(state State) bool {
	for key := range d.table {
		if key.source == state {
			return false
		}
	}
	return true
}
