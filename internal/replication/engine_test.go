package replication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/order"
	"github.com/louisbranch/orderflow/internal/machine"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/testkit"
)

func orderDefinition(t *testing.T, transitions []machine.Transition) *machine.Definition {
	t.Helper()

	def, err := machine.NewDefinition(entity.KindOrder, machine.State(order.StatusNew), transitions)
	if err != nil {
		t.Fatalf("NewDefinition() error = %v", err)
	}
	return def
}

func seedOrderLog(t *testing.T, events *testkit.EventStore, ref entity.Ref, types ...event.Type) []event.Event {
	t.Helper()

	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	log := make([]event.Event, 0, len(types))
	for i, eventType := range types {
		evt := event.Event{
			ID:        "evt-" + string(rune('a'+i)),
			Type:      eventType,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Entity:    ref,
		}
		log = append(log, evt)
	}
	events.Seed(log...)
	return log
}

func newOrderEngine(t *testing.T, def *machine.Definition) (*Engine, *testkit.EventStore, *testkit.EntityStore) {
	t.Helper()

	events := testkit.NewEventStore()
	entities := testkit.NewEntityStore()
	engine, err := NewEngine(events, entities, map[entity.Kind]*machine.Definition{
		entity.KindOrder: def,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine, events, entities
}

func TestReplicateFiresExactlyOneSideEffect(t *testing.T) {
	created := &testkit.SpyAction{}
	connected := &testkit.SpyAction{}
	requested := &testkit.SpyAction{}

	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated), Action: created},
		{Source: machine.State(order.StatusCreated), Event: order.EventTypeAccountConnected, Target: machine.State(order.StatusAccountConnected), Action: connected},
		{Source: machine.State(order.StatusAccountConnected), Event: order.EventTypeReservationRequested, Target: machine.State(order.StatusReservationPending), Action: requested},
	})
	engine, events, entities := newOrderEngine(t, def)

	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusAccountConnected}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	log := seedOrderLog(t, events, ref,
		order.EventTypeCreated,
		order.EventTypeAccountConnected,
		order.EventTypeReservationRequested,
	)

	agg, err := engine.Replicate(context.Background(), log[2])
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}

	if agg.StatusValue() != string(order.StatusReservationPending) {
		t.Errorf("status = %q, want %q", agg.StatusValue(), order.StatusReservationPending)
	}
	if created.Triggered() != 0 || connected.Triggered() != 0 {
		t.Errorf("historical actions triggered = %d, %d, want 0, 0", created.Triggered(), connected.Triggered())
	}
	if requested.Triggered() != 1 {
		t.Errorf("requested.Triggered() = %d, want 1", requested.Triggered())
	}
	if created.Historical() != 1 || connected.Historical() != 1 {
		t.Errorf("historical invocations = %d, %d, want 1, 1", created.Historical(), connected.Historical())
	}
}

func TestReplicateIsDeterministic(t *testing.T) {
	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
		{Source: machine.State(order.StatusCreated), Event: order.EventTypeAccountConnected, Target: machine.State(order.StatusAccountConnected)},
	})
	engine, events, entities := newOrderEngine(t, def)

	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusCreated}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	log := seedOrderLog(t, events, ref, order.EventTypeCreated, order.EventTypeAccountConnected)

	first, err := engine.Replicate(context.Background(), log[1])
	if err != nil {
		t.Fatalf("first Replicate() error = %v", err)
	}
	second, err := engine.Replicate(context.Background(), log[1])
	if err != nil {
		t.Fatalf("second Replicate() error = %v", err)
	}

	if first.StatusValue() != second.StatusValue() {
		t.Errorf("statuses differ across replays: %q vs %q", first.StatusValue(), second.StatusValue())
	}
	if first.StatusValue() != string(order.StatusAccountConnected) {
		t.Errorf("status = %q, want %q", first.StatusValue(), order.StatusAccountConnected)
	}
}

func TestReplicateIsSensitiveToLogOrder(t *testing.T) {
	transitions := []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
		{Source: machine.State(order.StatusCreated), Event: order.EventTypeAccountConnected, Target: machine.State(order.StatusAccountConnected)},
	}
	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	replay := func(t *testing.T, createdAt, connectedAt time.Time) string {
		t.Helper()

		engine, events, entities := newOrderEngine(t, orderDefinition(t, transitions))
		if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusNew}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		created := event.Event{ID: "evt-a", Type: order.EventTypeCreated, CreatedAt: createdAt, Entity: ref}
		connected := event.Event{ID: "evt-b", Type: order.EventTypeAccountConnected, CreatedAt: connectedAt, Entity: ref}
		events.Seed(created, connected)

		agg, err := engine.Replicate(context.Background(), created)
		if err != nil {
			t.Fatalf("Replicate() error = %v", err)
		}
		return agg.StatusValue()
	}

	// Creation first: the connection event replays on top of it.
	if got := replay(t, base, base.Add(time.Minute)); got != string(order.StatusAccountConnected) {
		t.Errorf("status with ordered log = %q, want %q", got, order.StatusAccountConnected)
	}
	// Timestamps swapped: the connection event precedes creation, finds no
	// transition out of the initial state, and is skipped.
	if got := replay(t, base.Add(time.Minute), base); got != string(order.StatusCreated) {
		t.Errorf("status with swapped log = %q, want %q", got, order.StatusCreated)
	}
}

func TestReplicateSkipsUndefinedHistoricalEvents(t *testing.T) {
	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
		{Source: machine.State(order.StatusCreated), Event: order.EventTypeAccountConnected, Target: machine.State(order.StatusAccountConnected)},
	})
	engine, events, entities := newOrderEngine(t, def)

	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusCreated}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	// payment_failed has no transition from any of the traversed states.
	log := seedOrderLog(t, events, ref,
		order.EventTypeCreated,
		order.EventTypePaymentFailed,
		order.EventTypeAccountConnected,
	)

	agg, err := engine.Replicate(context.Background(), log[2])
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	if agg.StatusValue() != string(order.StatusAccountConnected) {
		t.Errorf("status = %q, want %q", agg.StatusValue(), order.StatusAccountConnected)
	}
}

func TestReplicateNoApplicableTransitionForTriggeringEvent(t *testing.T) {
	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
	})
	engine, events, entities := newOrderEngine(t, def)

	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusCreated}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	log := seedOrderLog(t, events, ref, order.EventTypeCreated, order.EventTypePaymentSucceeded)

	_, err := engine.Replicate(context.Background(), log[1])
	if got := apperrors.CodeOf(err); got != apperrors.CodeNoApplicableTransition {
		t.Fatalf("CodeOf(err) = %q, want %q (err = %v)", got, apperrors.CodeNoApplicableTransition, err)
	}
}

func TestReplicateAggregateNotFound(t *testing.T) {
	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
	})
	engine, _, _ := newOrderEngine(t, def)

	evt := event.Event{
		ID:     "evt-a",
		Type:   order.EventTypeCreated,
		Entity: entity.Ref{Kind: entity.KindOrder, ID: "missing"},
	}
	_, err := engine.Replicate(context.Background(), evt)
	if got := apperrors.CodeOf(err); got != apperrors.CodeAggregateNotFound {
		t.Fatalf("CodeOf(err) = %q, want %q (err = %v)", got, apperrors.CodeAggregateNotFound, err)
	}
}

func TestReplicateTriggeringEventNotYetVisible(t *testing.T) {
	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
	})
	engine, events, entities := newOrderEngine(t, def)

	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusCreated}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	seedOrderLog(t, events, ref, order.EventTypeCreated)

	stale := event.Event{ID: "evt-unseen", Type: order.EventTypeCreated, Entity: ref}
	_, err := engine.Replicate(context.Background(), stale)
	if err == nil {
		t.Fatal("Replicate() error = nil, want transient error")
	}
	if got := apperrors.CodeOf(err); got != apperrors.CodeUnknown {
		t.Errorf("CodeOf(err) = %q, want %q", got, apperrors.CodeUnknown)
	}
}

func TestReplicateAbortsOnHistoricalActionFailure(t *testing.T) {
	replayErr := errors.New("corrupt annotation")
	created := &testkit.SpyAction{HistoricalErr: replayErr}

	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated), Action: created},
		{Source: machine.State(order.StatusCreated), Event: order.EventTypeAccountConnected, Target: machine.State(order.StatusAccountConnected)},
	})
	engine, events, entities := newOrderEngine(t, def)

	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusCreated}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	log := seedOrderLog(t, events, ref, order.EventTypeCreated, order.EventTypeAccountConnected)

	_, err := engine.Replicate(context.Background(), log[1])
	if !errors.Is(err, replayErr) {
		t.Fatalf("Replicate() error = %v, want wrapped %v", err, replayErr)
	}
}

func TestReplicateSurfacesTriggeringActionFailure(t *testing.T) {
	stepErr := apperrors.New(apperrors.CodeRemoteStepFailure, "settle declined")
	requested := &testkit.SpyAction{Err: stepErr}

	def := orderDefinition(t, []machine.Transition{
		{Source: machine.State(order.StatusNew), Event: order.EventTypeCreated, Target: machine.State(order.StatusCreated)},
		{Source: machine.State(order.StatusCreated), Event: order.EventTypeAccountConnected, Target: machine.State(order.StatusAccountConnected), Action: requested},
	})
	engine, events, entities := newOrderEngine(t, def)

	ref := entity.Ref{Kind: entity.KindOrder, ID: "ord-1"}
	if _, err := entities.Put(context.Background(), order.Order{ID: "ord-1", AccountID: "acct-1", Status: order.StatusCreated}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	log := seedOrderLog(t, events, ref, order.EventTypeCreated, order.EventTypeAccountConnected)

	_, err := engine.Replicate(context.Background(), log[1])
	if got := apperrors.CodeOf(err); got != apperrors.CodeRemoteStepFailure {
		t.Fatalf("CodeOf(err) = %q, want %q (err = %v)", got, apperrors.CodeRemoteStepFailure, err)
	}
	if requested.Triggered() != 1 {
		t.Errorf("requested.Triggered() = %d, want 1", requested.Triggered())
	}
}
