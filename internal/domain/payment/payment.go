// Package payment defines the payment aggregate and its lifecycle events.
package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/platform/id"
)

// Status is the replay-derived lifecycle status of a payment.
type Status string

const (
	// StatusNew is the machine state before the creation event is replayed.
	StatusNew Status = "new"
	// StatusCreated indicates the payment exists but is not linked to its order.
	StatusCreated Status = "created"
	// StatusConnected indicates the payment is linked to its order.
	StatusConnected Status = "connected"
	// StatusPending indicates the payment is authorized and awaiting settlement.
	StatusPending Status = "pending"
	// StatusProcessed indicates the payment settled.
	StatusProcessed Status = "processed"
	// StatusFailed indicates the payment was declined or failed.
	StatusFailed Status = "failed"
)

// Payment lifecycle events.
const (
	// EventTypeCreated records the creation of a payment.
	EventTypeCreated = "payment.created"
	// EventTypeOrderConnected records the payment being linked to its order.
	EventTypeOrderConnected = "payment.order_connected"
	// EventTypeRequested records the authorization request.
	EventTypeRequested = "payment.requested"
	// EventTypeProcessed records settlement of the payment.
	EventTypeProcessed = "payment.processed"
	// EventTypeFailed records a declined or failed payment.
	EventTypeFailed = "payment.failed"
)

// Payment represents a payment for one order.
type Payment struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	AccountID string    `json:"account_id"`
	// Amount is in cents.
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the aggregate identity.
func (p Payment) Ref() entity.Ref {
	return entity.Ref{Kind: entity.KindPayment, ID: p.ID}
}

// StatusValue returns the cached status as a string.
func (p Payment) StatusValue() string {
	return string(p.Status)
}

// WithStatusValue returns a copy with the cached status replaced.
func (p Payment) WithStatusValue(status string) entity.Aggregate {
	p.Status = Status(status)
	return p
}

// CreateInput describes the data needed to create a payment.
type CreateInput struct {
	OrderID   string
	AccountID string
	Amount    int64
	Currency  string
}

// Create builds a new payment with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Payment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.OrderID = strings.TrimSpace(input.OrderID)
	if input.OrderID == "" {
		return Payment{}, errors.New(errors.CodePaymentEmptyOrderID, "payment order id is required")
	}
	if input.Amount <= 0 {
		return Payment{}, errors.New(errors.CodePaymentInvalidAmount, "payment amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	paymentID, err := idGenerator()
	if err != nil {
		return Payment{}, fmt.Errorf("generate payment id: %w", err)
	}

	createdAt := now().UTC()
	return Payment{
		ID:        paymentID,
		OrderID:   input.OrderID,
		AccountID: strings.TrimSpace(input.AccountID),
		Amount:    input.Amount,
		Currency:  currency,
		Status:    StatusCreated,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
