// Package kafka carries replication triggers and status notifications over
// Kafka topics.
//
// Every appended domain event is published as a JSON envelope keyed by its
// aggregate reference, so one partition sees one aggregate's events in
// order. The consumer feeds each envelope to the replication processor and
// decides redelivery from the error class: typed domain failures are final
// and committed, everything else is transient and redelivered.
package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
)

// Envelope is the wire form of one domain event.
type Envelope struct {
	EventID     string            `json:"event_id"`
	EventType   string            `json:"event_type"`
	EntityKind  string            `json:"entity_kind"`
	EntityID    string            `json:"entity_id"`
	Annotations map[string]string `json:"annotations,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// EncodeEvent marshals a domain event into its wire form.
func EncodeEvent(evt event.Event) ([]byte, error) {
	if evt.ID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if err := evt.Entity.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(Envelope{
		EventID:     evt.ID,
		EventType:   string(evt.Type),
		EntityKind:  string(evt.Entity.Kind),
		EntityID:    evt.Entity.ID,
		Annotations: evt.Annotations,
		OccurredAt:  evt.CreatedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope for %s: %w", evt.ID, err)
	}
	return payload, nil
}

// DecodeEvent unmarshals a wire envelope back into a domain event.
func DecodeEvent(payload []byte) (event.Event, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return event.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	evt := event.Event{
		ID:          envelope.EventID,
		Type:        event.Type(envelope.EventType),
		CreatedAt:   envelope.OccurredAt,
		Entity:      entity.Ref{Kind: entity.Kind(envelope.EntityKind), ID: envelope.EntityID},
		Annotations: envelope.Annotations,
	}
	if evt.ID == "" {
		return event.Event{}, fmt.Errorf("envelope has no event id")
	}
	if err := evt.Entity.Validate(); err != nil {
		return event.Event{}, fmt.Errorf("envelope entity: %w", err)
	}
	if !evt.Type.IsValid() {
		return event.Event{}, fmt.Errorf("envelope has no event type")
	}
	return evt, nil
}
