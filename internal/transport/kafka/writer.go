package kafka

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/louisbranch/orderflow/internal/domain/event"
)

// EventWriter publishes replication trigger envelopes to the events topic.
// The appenders (seed tooling, upstream services) use it to hand freshly
// appended events to the consumer group.
type EventWriter struct {
	writer *kafkago.Writer
}

// NewEventWriter creates a writer for the given brokers and topic.
func NewEventWriter(brokers []string, topic string) (*EventWriter, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &EventWriter{writer: writer}, nil
}

// WriteEvent publishes one domain event, keyed by aggregate reference.
func (w *EventWriter) WriteEvent(ctx context.Context, evt event.Event) error {
	if w == nil || w.writer == nil {
		return fmt.Errorf("event writer is not configured")
	}
	payload, err := EncodeEvent(evt)
	if err != nil {
		return err
	}
	message := kafkago.Message{
		Key:   []byte(evt.Entity.String()),
		Value: payload,
	}
	if err := w.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("publish event %s: %w", evt.ID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (w *EventWriter) Close() error {
	if w == nil || w.writer == nil {
		return nil
	}
	return w.writer.Close()
}
