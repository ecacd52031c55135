package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
)

// StatusNotification is the wire form of one successful replication,
// published for downstream projections and audit consumers.
type StatusNotification struct {
	EntityKind  string    `json:"entity_kind"`
	EntityID    string    `json:"entity_id"`
	Status      string    `json:"status"`
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ReplayedAt  time.Time `json:"replayed_at"`
}

// Publisher writes replication notifications to a Kafka topic, keyed by
// aggregate reference so one partition carries one aggregate in order.
type Publisher struct {
	writer *kafkago.Writer
	now    func() time.Time
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
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
	return &Publisher{writer: writer, now: time.Now}, nil
}

// PublishReplicated implements replication.Publisher.
func (p *Publisher) PublishReplicated(ctx context.Context, agg entity.Aggregate, evt event.Event) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("publisher is not configured")
	}

	ref := agg.Ref()
	payload, err := json.Marshal(StatusNotification{
		EntityKind: string(ref.Kind),
		EntityID:   ref.ID,
		Status:     agg.StatusValue(),
		EventID:    evt.ID,
		EventType:  string(evt.Type),
		ReplayedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification for %s: %w", ref, err)
	}

	message := kafkago.Message{
		Key:   []byte(ref.String()),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("publish notification for %s: %w", ref, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
