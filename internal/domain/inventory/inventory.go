// Package inventory defines the inventory aggregate and its lifecycle events.
package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/platform/id"
)

// Status is the replay-derived lifecycle status of an inventory record.
type Status string

const (
	// StatusNew is the machine state before the creation event is replayed.
	StatusNew Status = "new"
	// StatusCreated indicates the record exists but has no warehouse.
	StatusCreated Status = "created"
	// StatusAvailable indicates stock can be reserved.
	StatusAvailable Status = "available"
	// StatusDepleted indicates no stock remains.
	StatusDepleted Status = "depleted"
)

// Inventory lifecycle events.
const (
	// EventTypeCreated records the creation of an inventory record.
	EventTypeCreated = "inventory.created"
	// EventTypeWarehouseConnected records assignment to a warehouse.
	EventTypeWarehouseConnected = "inventory.warehouse_connected"
	// EventTypeStockReserved records stock being reserved for an order.
	EventTypeStockReserved = "inventory.stock_reserved"
	// EventTypeDepleted records stock reaching zero.
	EventTypeDepleted = "inventory.depleted"
	// EventTypeRestocked records replenishment.
	EventTypeRestocked = "inventory.restocked"
)

// Inventory tracks the stock of one SKU in one warehouse.
type Inventory struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	WarehouseID string    `json:"warehouse_id,omitempty"`
	Quantity    int64     `json:"quantity"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Ref returns the aggregate identity.
func (i Inventory) Ref() entity.Ref {
	return entity.Ref{Kind: entity.KindInventory, ID: i.ID}
}

// StatusValue returns the cached status as a string.
func (i Inventory) StatusValue() string {
	return string(i.Status)
}

// WithStatusValue returns a copy with the cached status replaced.
func (i Inventory) WithStatusValue(status string) entity.Aggregate {
	i.Status = Status(status)
	return i
}

// CreateInput describes the data needed to create an inventory record.
type CreateInput struct {
	SKU      string
	Quantity int64
}

// Create builds a new inventory record with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Inventory, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.SKU = strings.TrimSpace(input.SKU)
	if input.SKU == "" {
		return Inventory{}, fmt.Errorf("inventory sku is required")
	}
	if input.Quantity < 0 {
		return Inventory{}, errors.New(errors.CodeInventoryInsufficientStock, "inventory quantity cannot be negative")
	}

	inventoryID, err := idGenerator()
	if err != nil {
		return Inventory{}, fmt.Errorf("generate inventory id: %w", err)
	}

	createdAt := now().UTC()
	return Inventory{
		ID:        inventoryID,
		SKU:       input.SKU,
		Quantity:  input.Quantity,
		Status:    StatusCreated,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
