package replication

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/order"
	"github.com/louisbranch/orderflow/internal/machine"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/testkit"
)

type recordingPublisher struct {
	published []event.Event
	err       error
}

func (p *recordingPublisher) PublishReplicated(_ context.Context, _ entity.Aggregate, evt event.Event) error {
	p.published = append(p.published, evt)
	return p.err
}

func TestProcessorRefreshesProjections(t *testing.T) {
	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
	})
	engine, events, entities := newOrderEngine(t, def)

	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusCreated}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	log := seedOrderLog(t, events, ref, order.EventTypeCreated)

	cache := testkit.NewStatusCache()
	publisher := &recordingPublisher{}
	computedAt := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	processor, err := NewProcessor(engine, entities, cache, publisher, func() time.Time { return computedAt })
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	agg, err := processor.Process(context.Background(), log[0])
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if agg.StatusValue() != string(order.StatusCreated) {
		t.Errorf("status = %q, want %q", agg.StatusValue(), order.StatusCreated)
	}

	record, err := entities.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if record.StatusValue() != string(order.StatusCreated) {
		t.Errorf("written-back status = %q, want %q", record.StatusValue(), order.StatusCreated)
	}

	entry, err := cache.GetStatus(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if entry.Status != string(order.StatusCreated) {
		t.Errorf("cached status = %q, want %q", entry.Status, order.StatusCreated)
	}
	if !entry.ComputedAt.Equal(computedAt) {
		t.Errorf("ComputedAt = %v, want %v", entry.ComputedAt, computedAt)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d notifications, want 1", len(publisher.published))
	}
	if publisher.published[0].ID != log[0].ID {
		t.Errorf("published event = %q, want %q", publisher.published[0].ID, log[0].ID)
	}
}

func TestProcessorSkipsProjectionsOnFailure(t *testing.T) {
	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
	})
	engine, _, _ := newOrderEngine(t, def)

	cache := testkit.NewStatusCache()
	publisher := &recordingPublisher{}
	processor, err := NewProcessor(engine, nil, cache, publisher, nil)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	missing := event.Event{
		ID:     "evt-a",
		Type:   order.EventTypeCreated,
		Entity: entity.Ref{Kind: entity.KindOrder, ID: "missing"},
	}
	_, err = processor.Process(context.Background(), missing)
	if got := apperrors.CodeOf(err); got != apperrors.CodeAggregateNotFound {
		t.Fatalf("CodeOf(err) = %q, want %q", got, apperrors.CodeAggregateNotFound)
	}
	if len(publisher.published) != 0 {
		t.Errorf("published %d notifications, want 0", len(publisher.published))
	}
}
