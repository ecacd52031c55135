package replication

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/storage"
)

// Publisher receives a notification after every successful replication.
// Implementations must tolerate redelivery of the same event.
type Publisher interface {
	PublishReplicated(ctx context.Context, agg entity.Aggregate, evt event.Event) error
}

// NoopPublisher discards notifications. Used when no broker is configured.
type NoopPublisher struct{}

// PublishReplicated implements Publisher.
func (NoopPublisher) PublishReplicated(context.Context, entity.Aggregate, event.Event) error {
	return nil
}

// Processor drives the engine and maintains the derived-status projections:
// after a successful replication it writes the recomputed snapshot back to
// the entity store, refreshes the status cache, and notifies the publisher.
// Projection failures do not fail the replication itself; the log remains
// the source of truth and the next event repairs them.
type Processor struct {
	engine    *Engine
	entities  storage.EntityStore
	cache     storage.StatusCache
	publisher Publisher
	now       func() time.Time
}

// NewProcessor wraps an engine. entities, cache, and publisher may be nil.
func NewProcessor(engine *Engine, entities storage.EntityStore, cache storage.StatusCache, publisher Publisher, now func() time.Time) (*Processor, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Processor{engine: engine, entities: entities, cache: cache, publisher: publisher, now: now}, nil
}

// Process replicates evt and, on success, refreshes derived projections.
func (p *Processor) Process(ctx context.Context, evt event.Event) (entity.Aggregate, error) {
	agg, err := p.engine.Replicate(ctx, evt)
	if err != nil {
		return nil, err
	}

	if p.entities != nil {
		if _, storeErr := p.entities.Update(ctx, agg); storeErr != nil {
			log.Printf("write back snapshot for %s: %v", agg.Ref(), storeErr)
		}
	}

	if p.cache != nil {
		entry := storage.StatusEntry{
			Ref:        agg.Ref(),
			Status:     agg.StatusValue(),
			ComputedAt: p.now().UTC(),
		}
		if cacheErr := p.cache.SetStatus(ctx, entry); cacheErr != nil {
			log.Printf("refresh status cache for %s: %v", agg.Ref(), cacheErr)
		}
	}

	if pubErr := p.publisher.PublishReplicated(ctx, agg, evt); pubErr != nil {
		log.Printf("publish replication of %s: %v", agg.Ref(), pubErr)
	}

	return agg, nil
}
