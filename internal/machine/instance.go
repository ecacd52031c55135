package machine

import (
	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
)

// Extended context keys carried by an Instance during one replication call.
const (
	// ContextKeyAggregate holds the latest computed aggregate snapshot.
	ContextKeyAggregate = "aggregate"
	// ContextKeyTriggeringEvent transiently holds the event whose action
	// must fire real side effects.
	ContextKeyTriggeringEvent = "triggeringEvent"
)

// Instance is an ephemeral state machine execution. It is created fresh for
// every replication call, never shared across concurrent replications, and
// carries no identity beyond the call that created it.
type Instance struct {
	def     *Definition
	current State
	context map[string]any
}

// NewInstance creates an instance at the definition's initial state with an
// empty extended context.
func (d *Definition) NewInstance() *Instance {
	return &Instance{
		def:     d,
		current: d.initial,
		context: make(map[string]any),
	}
}

// Current returns the instance's current state.
func (i *Instance) Current() State {
	return i.current
}

// Advance moves the instance to the given state.
func (i *Instance) Advance(next State) {
	i.current = next
}

// Aggregate returns the latest computed aggregate snapshot, or nil when no
// action has stored one yet.
func (i *Instance) Aggregate() entity.Aggregate {
	agg, _ := i.context[ContextKeyAggregate].(entity.Aggregate)
	return agg
}

// SetAggregate stores the latest computed aggregate snapshot.
func (i *Instance) SetAggregate(agg entity.Aggregate) {
	if agg == nil {
		return
	}
	i.context[ContextKeyAggregate] = agg
}

// MarkTriggering places the triggering event into the extended context for
// the duration of one step.
func (i *Instance) MarkTriggering(evt event.Event) {
	i.context[ContextKeyTriggeringEvent] = evt
}

// ClearTriggering removes the triggering-event marker.
func (i *Instance) ClearTriggering() {
	delete(i.context, ContextKeyTriggeringEvent)
}

// TriggeringEvent returns the marked triggering event, if any.
func (i *Instance) TriggeringEvent() (event.Event, bool) {
	evt, ok := i.context[ContextKeyTriggeringEvent].(event.Event)
	return evt, ok
}
