// Package warehouse defines the warehouse aggregate and its lifecycle events.
package warehouse

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/platform/id"
)

// Status is the replay-derived lifecycle status of a warehouse.
type Status string

const (
	// StatusNew is the machine state before the creation event is replayed.
	StatusNew Status = "new"
	// StatusCreated indicates the warehouse exists but is not receiving stock.
	StatusCreated Status = "created"
	// StatusOpen indicates the warehouse is operating.
	StatusOpen Status = "open"
	// StatusClosed indicates the warehouse is shut down.
	StatusClosed Status = "closed"
)

// Warehouse lifecycle events.
const (
	// EventTypeCreated records the creation of a warehouse.
	EventTypeCreated = "warehouse.created"
	// EventTypeOpened records the warehouse opening for operations.
	EventTypeOpened = "warehouse.opened"
	// EventTypeClosed records the warehouse shutting down.
	EventTypeClosed = "warehouse.closed"
)

// Warehouse represents a stock location.
type Warehouse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Region    string    `json:"region"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the aggregate identity.
func (w Warehouse) Ref() entity.Ref {
	return entity.Ref{Kind: entity.KindWarehouse, ID: w.ID}
}

// StatusValue returns the cached status as a string.
func (w Warehouse) StatusValue() string {
	return string(w.Status)
}

// WithStatusValue returns a copy with the cached status replaced.
func (w Warehouse) WithStatusValue(status string) entity.Aggregate {
	w.Status = Status(status)
	return w
}

// CreateInput describes the data needed to create a warehouse.
type CreateInput struct {
	Name   string
	Region string
}

// Create builds a new warehouse with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Warehouse, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Warehouse{}, fmt.Errorf("warehouse name is required")
	}

	warehouseID, err := idGenerator()
	if err != nil {
		return Warehouse{}, fmt.Errorf("generate warehouse id: %w", err)
	}

	createdAt := now().UTC()
	return Warehouse{
		ID:        warehouseID,
		Name:      input.Name,
		Region:    strings.TrimSpace(input.Region),
		Status:    StatusCreated,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
