// Package reservation defines the stock reservation aggregate and its
// lifecycle events.
package reservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/platform/id"
)

// Status is the replay-derived lifecycle status of a reservation.
type Status string

const (
	// StatusNew is the machine state before the creation event is replayed.
	StatusNew Status = "new"
	// StatusCreated indicates the reservation exists but has no inventory.
	StatusCreated Status = "created"
	// StatusConnected indicates the reservation is linked to inventory.
	StatusConnected Status = "connected"
	// StatusPending indicates the stock hold is in flight.
	StatusPending Status = "pending"
	// StatusConfirmed indicates stock was held.
	StatusConfirmed Status = "confirmed"
	// StatusRejected indicates the hold was refused.
	StatusRejected Status = "rejected"
	// StatusReleased indicates a confirmed hold was returned to stock.
	StatusReleased Status = "released"
)

// Reservation lifecycle events.
const (
	// EventTypeCreated records the creation of a reservation.
	EventTypeCreated = "reservation.created"
	// EventTypeInventoryConnected records the inventory link.
	EventTypeInventoryConnected = "reservation.inventory_connected"
	// EventTypeRequested records the stock hold request.
	EventTypeRequested = "reservation.requested"
	// EventTypeConfirmed records a successful stock hold.
	EventTypeConfirmed = "reservation.confirmed"
	// EventTypeRejected records a refused stock hold.
	EventTypeRejected = "reservation.rejected"
	// EventTypeReleased records a confirmed hold being returned.
	EventTypeReleased = "reservation.released"
)

// Reservation holds stock for one order line.
type Reservation struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	InventoryID string    `json:"inventory_id,omitempty"`
	SKU         string    `json:"sku"`
	Quantity    int64     `json:"quantity"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Ref returns the aggregate identity.
func (r Reservation) Ref() entity.Ref {
	return entity.Ref{Kind: entity.KindReservation, ID: r.ID}
}

// StatusValue returns the cached status as a string.
func (r Reservation) StatusValue() string {
	return string(r.Status)
}

// WithStatusValue returns a copy with the cached status replaced.
func (r Reservation) WithStatusValue(status string) entity.Aggregate {
	r.Status = Status(status)
	return r
}

// CreateInput describes the data needed to create a reservation.
type CreateInput struct {
	OrderID  string
	SKU      string
	Quantity int64
}

// Create builds a new reservation with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Reservation, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.OrderID = strings.TrimSpace(input.OrderID)
	if input.OrderID == "" {
		return Reservation{}, fmt.Errorf("reservation order id is required")
	}
	input.SKU = strings.TrimSpace(input.SKU)
	if input.SKU == "" {
		return Reservation{}, fmt.Errorf("reservation sku is required")
	}
	if input.Quantity <= 0 {
		return Reservation{}, errors.New(errors.CodeReservationInvalidQuantity, "reservation quantity must be positive")
	}

	reservationID, err := idGenerator()
	if err != nil {
		return Reservation{}, fmt.Errorf("generate reservation id: %w", err)
	}

	createdAt := now().UTC()
	return Reservation{
		ID:        reservationID,
		OrderID:   input.OrderID,
		SKU:       input.SKU,
		Quantity:  input.Quantity,
		Status:    StatusCreated,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
