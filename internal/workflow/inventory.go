package workflow

import (
	"context"
	"fmt"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/inventory"
	"github.com/louisbranch/orderflow/internal/domain/warehouse"
	"github.com/louisbranch/orderflow/internal/machine"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

func (d Deps) inventoryDefinition() (*machine.Definition, error) {
	return machine.NewDefinition(entity.KindInventory, machine.State(inventory.StatusNew), []machine.Transition{
		{
			Source: machine.State(inventory.StatusNew),
			Event:  inventory.EventTypeCreated,
			Target: machine.State(inventory.StatusCreated),
		},
		{
			Source: machine.State(inventory.StatusCreated),
			Event:  inventory.EventTypeWarehouseConnected,
			Target: machine.State(inventory.StatusAvailable),
			Action: machine.ActionFunc(d.connectWarehouse),
		},
		{
			Source: machine.State(inventory.StatusAvailable),
			Event:  inventory.EventTypeStockReserved,
			Target: machine.State(inventory.StatusAvailable),
			Action: machine.ActionFunc(d.adjustStock),
		},
		{
			Source: machine.State(inventory.StatusAvailable),
			Event:  inventory.EventTypeDepleted,
			Target: machine.State(inventory.StatusDepleted),
		},
		{
			Source: machine.State(inventory.StatusAvailable),
			Event:  inventory.EventTypeRestocked,
			Target: machine.State(inventory.StatusAvailable),
			Action: machine.ActionFunc(d.recordRestock),
		},
		{
			Source: machine.State(inventory.StatusDepleted),
			Event:  inventory.EventTypeRestocked,
			Target: machine.State(inventory.StatusAvailable),
			Action: machine.ActionFunc(d.recordRestock),
		},
	})
}

// connectWarehouse assigns the inventory record to an open warehouse.
func (d Deps) connectWarehouse(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	stock, err := snapshotAs[inventory.Inventory](snapshot)
	if err != nil {
		return snapshot, err
	}

	warehouseID := evt.Annotation(event.AnnotationWarehouseID)
	if warehouseID == "" {
		return snapshot, apperrors.New(apperrors.CodePreconditionViolation,
			fmt.Sprintf("inventory %s has no warehouse to connect", stock.ID))
	}
	siteRef := entity.Ref{Kind: entity.KindWarehouse, ID: warehouseID}
	site, err := d.Entities.Get(ctx, siteRef)
	if err != nil {
		return snapshot, apperrors.Wrap(apperrors.CodePreconditionViolation,
			fmt.Sprintf("inventory %s references warehouse %s", stock.ID, warehouseID), err)
	}
	if site.StatusValue() != string(warehouse.StatusOpen) {
		return snapshot, apperrors.WithMetadata(apperrors.CodePreconditionViolation,
			fmt.Sprintf("warehouse %s is %s, stock needs an open warehouse", warehouseID, site.StatusValue()),
			map[string]string{"warehouse_id": warehouseID, "status": site.StatusValue()},
		)
	}

	stock.WarehouseID = warehouseID
	stock.UpdatedAt = d.now().UTC()
	if _, err := d.Entities.Update(ctx, stock); err != nil {
		return snapshot, fmt.Errorf("link warehouse to inventory %s: %w", stock.ID, err)
	}
	return stock, nil
}

// adjustStock decrements held quantity and records depletion at zero.
func (d Deps) adjustStock(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	stock, err := snapshotAs[inventory.Inventory](snapshot)
	if err != nil {
		return snapshot, err
	}

	quantity, err := parseQuantity(evt.Annotation(event.AnnotationQuantity))
	if err != nil {
		return snapshot, err
	}
	if quantity > stock.Quantity {
		return snapshot, apperrors.WithMetadata(apperrors.CodeInventoryInsufficientStock,
			fmt.Sprintf("inventory %s has %d units, %d reserved", stock.ID, stock.Quantity, quantity),
			map[string]string{"inventory_id": stock.ID, "quantity": formatQuantity(quantity)},
		)
	}

	stock.Quantity -= quantity
	stock.UpdatedAt = d.now().UTC()
	if _, err := d.Entities.Update(ctx, stock); err != nil {
		return snapshot, fmt.Errorf("adjust inventory %s: %w", stock.ID, err)
	}

	if stock.Quantity == 0 {
		annotations := forward(evt, event.AnnotationReservationID)
		if err := d.emit(ctx, stock.Ref(), inventory.EventTypeDepleted, annotations); err != nil {
			return snapshot, err
		}
	}
	return stock, nil
}

// recordRestock replenishes stock from a release or a delivery.
func (d Deps) recordRestock(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	stock, err := snapshotAs[inventory.Inventory](snapshot)
	if err != nil {
		return snapshot, err
	}

	quantity, err := parseQuantity(evt.Annotation(event.AnnotationQuantity))
	if err != nil {
		return snapshot, err
	}

	stock.Quantity += quantity
	stock.UpdatedAt = d.now().UTC()
	if _, err := d.Entities.Update(ctx, stock); err != nil {
		return snapshot, fmt.Errorf("restock inventory %s: %w", stock.ID, err)
	}
	return stock, nil
}
