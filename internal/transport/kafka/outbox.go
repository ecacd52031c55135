package kafka

import (
	"context"
	"fmt"

	"github.com/louisbranch/orderflow/internal/domain/event"
)

// EventSink receives every event appended through the outbox. *EventWriter
// is the production implementation.
type EventSink interface {
	WriteEvent(ctx context.Context, evt event.Event) error
}

// Outbox decorates an event store so that each appended event is also handed
// to the events topic. Workflow actions emit through it, which is what lets
// every raised event trigger its own replicate call downstream.
type Outbox struct {
	store event.Store
	sink  EventSink
}

// NewOutbox wraps store so appends are forwarded to sink.
func NewOutbox(store event.Store, sink EventSink) (*Outbox, error) {
	if store == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	return &Outbox{store: store, sink: sink}, nil
}

// Append stores the event, then publishes it. A publish failure surfaces as
// a transient error so the message being processed stays uncommitted and is
// redelivered.
func (o *Outbox) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	appended, err := o.store.Append(ctx, evt)
	if err != nil {
		return event.Event{}, err
	}
	if err := o.sink.WriteEvent(ctx, appended); err != nil {
		return event.Event{}, fmt.Errorf("forward appended event %s: %w", appended.ID, err)
	}
	return appended, nil
}
