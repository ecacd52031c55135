package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/louisbranch/orderflow/internal/domain/account"
	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/inventory"
	"github.com/louisbranch/orderflow/internal/domain/order"
	"github.com/louisbranch/orderflow/internal/domain/payment"
	"github.com/louisbranch/orderflow/internal/domain/reservation"
	"github.com/louisbranch/orderflow/internal/domain/warehouse"
	"github.com/louisbranch/orderflow/internal/remote"
	"github.com/louisbranch/orderflow/internal/replication"
	"github.com/louisbranch/orderflow/internal/testkit"
	"github.com/louisbranch/orderflow/internal/workflow"
)

type failingSink struct {
	err error
}

func (s failingSink) WriteEvent(context.Context, event.Event) error { return s.err }

func TestOutboxSurfacesPublishFailure(t *testing.T) {
	events := testkit.NewEventStore()
	outbox, err := NewOutbox(events, failingSink{err: errors.New("broker down")})
	if err != nil {
		t.Fatalf("NewOutbox() error = %v", err)
	}

	_, err = outbox.Append(context.Background(), event.Event{
		Type:   order.EventTypeCreated,
		Entity: entity.Ref{Kind: entity.KindOrder, ID: "ord-1"},
	})
	if err == nil {
		t.Fatal("Append() error = nil, want publish failure")
	}
}

// queueReader is an in-memory events topic. It drains like a consumer group
// partition and reports context.Canceled once empty, which ends Run cleanly.
type queueReader struct {
	mu         sync.Mutex
	messages   []kafkago.Message
	nextOffset int64
	committed  []int64
}

func (q *queueReader) push(msg kafkago.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	msg.Offset = q.nextOffset
	q.nextOffset++
	q.messages = append(q.messages, msg)
}

func (q *queueReader) FetchMessage(context.Context) (kafkago.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return kafkago.Message{}, context.Canceled
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, nil
}

func (q *queueReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, msg := range msgs {
		q.committed = append(q.committed, msg.Offset)
	}
	return nil
}

func (q *queueReader) Close() error { return nil }

func (q *queueReader) commitCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.committed)
}

// memorySink delivers appended events straight back onto the queue, closing
// the append-then-consume loop the deployed outbox provides via Kafka.
type memorySink struct {
	queue *queueReader
}

func (s *memorySink) WriteEvent(_ context.Context, evt event.Event) error {
	payload, err := EncodeEvent(evt)
	if err != nil {
		return err
	}
	s.queue.push(kafkago.Message{Key: []byte(evt.Entity.String()), Value: payload})
	return nil
}

func seedSagaHistory(events *testkit.EventStore, ref entity.Ref, startAt time.Time, types ...event.Type) {
	for i, eventType := range types {
		events.Seed(event.Event{
			ID:        string(ref.Kind) + "-hist-" + string(rune('a'+i)),
			Type:      eventType,
			CreatedAt: startAt.Add(time.Duration(i) * time.Second),
			Entity:    ref,
		})
	}
}

// TestConsumerDrivesSagaToCompletion runs the order choreography end to end
// through the transport: the only externally delivered message is the order
// creation; every later step arrives via the outbox feedback loop.
func TestConsumerDrivesSagaToCompletion(t *testing.T) {
	const (
		stockLink   = "https://inventory.example/stock/stk-1"
		gatewayLink = "https://payments.example/gateway"
	)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	events := testkit.NewEventStore()
	entities := testkit.NewEntityStore()
	proxy := testkit.NewFakeProxy()
	proxy.Resources[stockLink] = remote.Resource{
		Links: map[string]string{"commands.reserve": stockLink + "/reserve"},
	}
	proxy.Resources[gatewayLink] = remote.Resource{
		Links: map[string]string{
			"commands.authorize": gatewayLink + "/authorize",
			"commands.settle":    gatewayLink + "/settle",
		},
	}

	queue := &queueReader{}
	outbox, err := NewOutbox(events, &memorySink{queue: queue})
	if err != nil {
		t.Fatalf("NewOutbox() error = %v", err)
	}
	deps := workflow.Deps{
		Entities:       entities,
		Emitter:        event.NewEmitter(outbox),
		Remote:         proxy,
		PaymentGateway: gatewayLink,
	}
	definitions, err := deps.Definitions()
	if err != nil {
		t.Fatalf("Definitions() error = %v", err)
	}
	engine, err := replication.NewEngine(events, entities, definitions)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	processor, err := replication.NewProcessor(engine, entities, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	consumer := &Consumer{reader: queue, processor: processor}

	acct := account.Account{ID: "acct-1", Email: "kai@example.com", Status: account.StatusActive}
	if _, err := entities.Put(ctx, acct); err != nil {
		t.Fatalf("Put(account) error = %v", err)
	}
	seedSagaHistory(events, acct.Ref(), base, account.EventTypeCreated, account.EventTypeActivated)

	site := warehouse.Warehouse{ID: "wh-1", Name: "east", Status: warehouse.StatusOpen}
	if _, err := entities.Put(ctx, site); err != nil {
		t.Fatalf("Put(warehouse) error = %v", err)
	}
	seedSagaHistory(events, site.Ref(), base.Add(time.Minute), warehouse.EventTypeCreated, warehouse.EventTypeOpened)

	stock := inventory.Inventory{ID: "stk-1", SKU: "sku-1", WarehouseID: site.ID, Quantity: 5, Status: inventory.StatusAvailable}
	if _, err := entities.Put(ctx, stock); err != nil {
		t.Fatalf("Put(inventory) error = %v", err)
	}
	seedSagaHistory(events, stock.Ref(), base.Add(2*time.Minute), inventory.EventTypeCreated, inventory.EventTypeWarehouseConnected)

	ord := order.Order{
		ID:        "ord-1",
		AccountID: acct.ID,
		Items:     []order.LineItem{{SKU: "sku-1", Quantity: 2, UnitPrice: 1500}},
		Status:    order.StatusCreated,
	}
	if _, err := entities.Put(ctx, ord); err != nil {
		t.Fatalf("Put(order) error = %v", err)
	}
	if _, err := deps.Emitter.Emit(ctx, event.EmitInput{
		Entity: ord.Ref(),
		Type:   order.EventTypeCreated,
		Annotations: map[string]string{
			event.AnnotationInventoryID: stock.ID,
			event.AnnotationRemote:      stockLink,
		},
	}); err != nil {
		t.Fatalf("Emit(order.created) error = %v", err)
	}

	if err := consumer.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final, err := entities.Get(ctx, ord.Ref())
	if err != nil {
		t.Fatalf("Get(order) error = %v", err)
	}
	if final.StatusValue() != string(order.StatusCompleted) {
		t.Fatalf("order status = %q, want %q", final.StatusValue(), order.StatusCompleted)
	}
	completedOrder := final.(order.Order)

	res, err := entities.Get(ctx, entity.Ref{Kind: entity.KindReservation, ID: completedOrder.ReservationID})
	if err != nil {
		t.Fatalf("Get(reservation) error = %v", err)
	}
	if res.StatusValue() != string(reservation.StatusConfirmed) {
		t.Errorf("reservation status = %q, want %q", res.StatusValue(), reservation.StatusConfirmed)
	}
	pay, err := entities.Get(ctx, entity.Ref{Kind: entity.KindPayment, ID: completedOrder.PaymentID})
	if err != nil {
		t.Fatalf("Get(payment) error = %v", err)
	}
	if pay.StatusValue() != string(payment.StatusProcessed) {
		t.Errorf("payment status = %q, want %q", pay.StatusValue(), payment.StatusProcessed)
	}

	wantCommands := []string{"reserve", "authorize", "settle"}
	gotCommands := proxy.Commands()
	if len(gotCommands) != len(wantCommands) {
		t.Fatalf("commands = %v, want %v", gotCommands, wantCommands)
	}
	for i := range wantCommands {
		if gotCommands[i] != wantCommands[i] {
			t.Errorf("commands[%d] = %q, want %q", i, gotCommands[i], wantCommands[i])
		}
	}

	// Every delivered message was committed; nothing is pending redelivery.
	if committed := queue.commitCount(); int64(committed) != queue.nextOffset {
		t.Errorf("committed %d of %d delivered messages", committed, queue.nextOffset)
	}
}
