package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

// Processor replicates one domain event.
type Processor interface {
	Process(ctx context.Context, evt event.Event) (entity.Aggregate, error)
}

// fetcher is the subset of kafka-go's Reader the consumer depends on.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer feeds replication triggers from a Kafka topic into a processor.
type Consumer struct {
	reader    fetcher
	processor Processor
}

// NewConsumer creates a consumer group member for the given topic.
func NewConsumer(brokers []string, topic, groupID string, processor Processor) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka group id is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Consumer{reader: reader, processor: processor}, nil
}

// Run consumes until the context is canceled or a transient failure stops
// the loop. Undecodable messages and final domain errors are committed so
// they are not redelivered; transient errors leave the offset uncommitted
// and surface, so a restart redelivers the message.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil || c.reader == nil {
		return fmt.Errorf("consumer is not configured")
	}

	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		evt, err := DecodeEvent(message.Value)
		if err != nil {
			log.Printf("drop undecodable message at offset %d: %v", message.Offset, err)
			if err := c.reader.CommitMessages(ctx, message); err != nil {
				return fmt.Errorf("commit poison message: %w", err)
			}
			continue
		}

		if _, err := c.processor.Process(ctx, evt); err != nil {
			if !isFinal(err) {
				return fmt.Errorf("replicate %s for %s: %w", evt.Type, evt.Entity, err)
			}
			log.Printf("replication of %s for %s failed permanently: %v", evt.Type, evt.Entity, err)
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// isFinal reports whether the replication error is a stable property of the
// log rather than a transient fault. Final errors replay identically on
// every retry, so redelivering them cannot help.
func isFinal(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeAggregateNotFound,
		apperrors.CodeNoApplicableTransition,
		apperrors.CodePreconditionViolation,
		apperrors.CodeRemoteStepFailure:
		return true
	}
	return false
}
