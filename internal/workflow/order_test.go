package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/account"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/order"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

func TestInitializeOrderRejectsSuspendedAccount(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()

	acct := account.Account{ID: "acct-1", Email: "kai@example.com", Status: account.StatusSuspended}
	if _, err := f.entities.Put(ctx, acct); err != nil {
		t.Fatalf("Put(account) error = %v", err)
	}
	ord := order.Order{
		ID:        "ord-1",
		AccountID: acct.ID,
		Items:     []order.LineItem{{SKU: "sku-1", Quantity: 1, UnitPrice: 500}},
		Status:    order.StatusCreated,
	}
	if _, err := f.entities.Put(ctx, ord); err != nil {
		t.Fatalf("Put(order) error = %v", err)
	}
	created := event.Event{
		ID:        "evt-a",
		Type:      order.EventTypeCreated,
		CreatedAt: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC),
		Entity:    ord.Ref(),
	}
	f.events.Seed(created)

	_, err := f.engine.Replicate(ctx, created)
	if got := apperrors.CodeOf(err); got != apperrors.CodePreconditionViolation {
		t.Fatalf("CodeOf(err) = %q, want %q (err = %v)", got, apperrors.CodePreconditionViolation, err)
	}
	if connected := f.events.ByType(order.EventTypeAccountConnected); len(connected) != 0 {
		t.Errorf("order.account_connected events = %d, want 0", len(connected))
	}
}

func TestInitializeOrderRequiresKnownAccount(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()

	ord := order.Order{
		ID:        "ord-1",
		AccountID: "ghost",
		Items:     []order.LineItem{{SKU: "sku-1", Quantity: 1, UnitPrice: 500}},
		Status:    order.StatusCreated,
	}
	if _, err := f.entities.Put(ctx, ord); err != nil {
		t.Fatalf("Put(order) error = %v", err)
	}
	created := event.Event{
		ID:        "evt-a",
		Type:      order.EventTypeCreated,
		CreatedAt: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC),
		Entity:    ord.Ref(),
	}
	f.events.Seed(created)

	_, err := f.engine.Replicate(ctx, created)
	if got := apperrors.CodeOf(err); got != apperrors.CodePreconditionViolation {
		t.Fatalf("CodeOf(err) = %q, want %q (err = %v)", got, apperrors.CodePreconditionViolation, err)
	}
}

// A payment failure on the order releases the held reservation.
func TestOrderPaymentFailureReleasesReservation(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	ord := order.Order{
		ID:            "ord-1",
		AccountID:     "acct-1",
		ReservationID: "rsv-1",
		PaymentID:     "pay-1",
		Items:         []order.LineItem{{SKU: "sku-1", Quantity: 2, UnitPrice: 1500}},
		Status:        order.StatusPaymentPending,
	}
	if _, err := f.entities.Put(ctx, ord); err != nil {
		t.Fatalf("Put(order) error = %v", err)
	}
	failed := event.Event{
		ID:          "evt-g",
		Type:        order.EventTypePaymentFailed,
		CreatedAt:   base.Add(6 * time.Second),
		Entity:      ord.Ref(),
		Annotations: map[string]string{event.AnnotationReason: "card declined"},
	}
	history := []event.Type{
		order.EventTypeCreated,
		order.EventTypeAccountConnected,
		order.EventTypeReservationRequested,
		order.EventTypeReservationSucceeded,
		order.EventTypePaymentCreated,
		order.EventTypePaymentConnected,
	}
	for i, eventType := range history {
		f.events.Seed(event.Event{
			ID:        "evt-" + string(rune('a'+i)),
			Type:      eventType,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			Entity:    ord.Ref(),
		})
	}
	f.events.Seed(failed)

	agg, err := f.engine.Replicate(ctx, failed)
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	if agg.StatusValue() != string(order.StatusPaymentFailed) {
		t.Errorf("order status = %q, want %q", agg.StatusValue(), order.StatusPaymentFailed)
	}

	released := f.events.ByType("reservation.released")
	if len(released) != 1 {
		t.Fatalf("reservation.released events = %d, want 1", len(released))
	}
	if got := released[0].Entity.ID; got != "rsv-1" {
		t.Errorf("released reservation = %q, want %q", got, "rsv-1")
	}
	if got := released[0].Annotation(event.AnnotationReason); got != "card declined" {
		t.Errorf("reason = %q, want %q", got, "card declined")
	}
}
