// Package order defines the order aggregate and its lifecycle events.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/platform/id"
)

// Status is the replay-derived lifecycle status of an order.
type Status string

const (
	// StatusNew is the machine state before the creation event is replayed.
	StatusNew Status = "new"
	// StatusCreated indicates the order exists but is not linked to an account.
	StatusCreated Status = "created"
	// StatusAccountConnected indicates the owning account was verified.
	StatusAccountConnected Status = "account_connected"
	// StatusReservationPending indicates stock reservation is in flight.
	StatusReservationPending Status = "reservation_pending"
	// StatusReservationSucceeded indicates stock was reserved.
	StatusReservationSucceeded Status = "reservation_succeeded"
	// StatusReservationFailed indicates stock could not be reserved.
	StatusReservationFailed Status = "reservation_failed"
	// StatusPaymentCreated indicates a payment aggregate was created.
	StatusPaymentCreated Status = "payment_created"
	// StatusPaymentPending indicates payment processing is in flight.
	StatusPaymentPending Status = "payment_pending"
	// StatusPaymentSucceeded indicates the payment settled.
	StatusPaymentSucceeded Status = "payment_succeeded"
	// StatusPaymentFailed indicates the payment was declined or failed.
	StatusPaymentFailed Status = "payment_failed"
	// StatusCompleted indicates the order finished its saga.
	StatusCompleted Status = "completed"
)

// Order lifecycle events.
const (
	// EventTypeCreated records the creation of an order.
	EventTypeCreated = "order.created"
	// EventTypeAccountConnected records verification of the owning account.
	EventTypeAccountConnected = "order.account_connected"
	// EventTypeReservationRequested records the start of stock reservation.
	EventTypeReservationRequested = "order.reservation_requested"
	// EventTypeReservationSucceeded records a confirmed stock reservation.
	EventTypeReservationSucceeded = "order.reservation_succeeded"
	// EventTypeReservationFailed records a rejected stock reservation.
	EventTypeReservationFailed = "order.reservation_failed"
	// EventTypePaymentCreated records creation of the payment aggregate.
	EventTypePaymentCreated = "order.payment_created"
	// EventTypePaymentConnected records the payment being linked back.
	EventTypePaymentConnected = "order.payment_connected"
	// EventTypePaymentSucceeded records a settled payment.
	EventTypePaymentSucceeded = "order.payment_succeeded"
	// EventTypePaymentFailed records a failed payment.
	EventTypePaymentFailed = "order.payment_failed"
	// EventTypeCompleted records saga completion.
	EventTypeCompleted = "order.completed"
)

// LineItem is one ordered SKU with a quantity and unit price in cents.
type LineItem struct {
	SKU       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Order represents a customer order.
type Order struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	ReservationID string     `json:"reservation_id,omitempty"`
	PaymentID     string     `json:"payment_id,omitempty"`
	Items         []LineItem `json:"items"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Ref returns the aggregate identity.
func (o Order) Ref() entity.Ref {
	return entity.Ref{Kind: entity.KindOrder, ID: o.ID}
}

// StatusValue returns the cached status as a string.
func (o Order) StatusValue() string {
	return string(o.Status)
}

// WithStatusValue returns a copy with the cached status replaced.
func (o Order) WithStatusValue(status string) entity.Aggregate {
	o.Status = Status(status)
	return o
}

// Total returns the order total in cents.
func (o Order) Total() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Quantity * item.UnitPrice
	}
	return total
}

// CreateInput describes the data needed to create an order.
type CreateInput struct {
	AccountID string
	Items     []LineItem
}

// Create builds a new order with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Order, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.AccountID = strings.TrimSpace(input.AccountID)
	if input.AccountID == "" {
		return Order{}, errors.New(errors.CodeOrderEmptyAccountID, "order account id is required")
	}
	if len(input.Items) == 0 {
		return Order{}, errors.New(errors.CodeOrderNoLineItems, "order needs at least one line item")
	}

	orderID, err := idGenerator()
	if err != nil {
		return Order{}, fmt.Errorf("generate order id: %w", err)
	}

	createdAt := now().UTC()
	return Order{
		ID:        orderID,
		AccountID: input.AccountID,
		Items:     input.Items,
		Status:    StatusCreated,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
