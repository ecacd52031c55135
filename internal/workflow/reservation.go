package workflow

import (
	"context"
	"fmt"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/inventory"
	"github.com/louisbranch/orderflow/internal/domain/order"
	"github.com/louisbranch/orderflow/internal/domain/reservation"
	"github.com/louisbranch/orderflow/internal/machine"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/remote"
)

func (d Deps) reservationDefinition() (*machine.Definition, error) {
	return machine.NewDefinition(entity.KindReservation, machine.State(reservation.StatusNew), []machine.Transition{
		{
			Source: machine.State(reservation.StatusNew),
			Event:  reservation.EventTypeCreated,
			Target: machine.State(reservation.StatusCreated),
			Action: machine.ActionFunc(d.connectInventory),
		},
		{
			Source: machine.State(reservation.StatusCreated),
			Event:  reservation.EventTypeInventoryConnected,
			Target: machine.State(reservation.StatusConnected),
			Action: machine.ActionFunc(d.requestStock),
		},
		{
			Source: machine.State(reservation.StatusConnected),
			Event:  reservation.EventTypeRequested,
			Target: machine.State(reservation.StatusPending),
			Action: machine.ActionFunc(d.confirmReservation),
		},
		{
			Source: machine.State(reservation.StatusPending),
			Event:  reservation.EventTypeConfirmed,
			Target: machine.State(reservation.StatusConfirmed),
			Action: machine.ActionFunc(d.reportReservationSuccess),
		},
		{
			Source: machine.State(reservation.StatusPending),
			Event:  reservation.EventTypeRejected,
			Target: machine.State(reservation.StatusRejected),
			Action: machine.ActionFunc(d.reportReservationFailure),
		},
		{
			Source: machine.State(reservation.StatusConfirmed),
			Event:  reservation.EventTypeReleased,
			Target: machine.State(reservation.StatusReleased),
			Action: machine.ActionFunc(d.restockInventory),
		},
	})
}

// connectInventory links the reservation to the inventory record named by
// the triggering event's annotation.
func (d Deps) connectInventory(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	res, err := snapshotAs[reservation.Reservation](snapshot)
	if err != nil {
		return snapshot, err
	}

	inventoryID := evt.Annotation(event.AnnotationInventoryID)
	if inventoryID == "" {
		return snapshot, apperrors.New(apperrors.CodePreconditionViolation,
			fmt.Sprintf("reservation %s has no inventory to connect", res.ID))
	}
	stockRef := entity.Ref{Kind: entity.KindInventory, ID: inventoryID}
	stock, err := d.Entities.Get(ctx, stockRef)
	if err != nil {
		return snapshot, apperrors.Wrap(apperrors.CodePreconditionViolation,
			fmt.Sprintf("reservation %s references inventory %s", res.ID, inventoryID), err)
	}
	if stock.StatusValue() != string(inventory.StatusAvailable) {
		return snapshot, apperrors.WithMetadata(apperrors.CodePreconditionViolation,
			fmt.Sprintf("inventory %s is %s, reservations need available stock", inventoryID, stock.StatusValue()),
			map[string]string{"inventory_id": inventoryID, "status": stock.StatusValue()},
		)
	}

	res.InventoryID = inventoryID
	res.UpdatedAt = d.now().UTC()
	if _, err := d.Entities.Update(ctx, res); err != nil {
		return snapshot, fmt.Errorf("link inventory to reservation %s: %w", res.ID, err)
	}

	annotations := annotate(forward(evt, event.AnnotationRemote, event.AnnotationOrderID),
		event.AnnotationInventoryID, inventoryID,
	)
	if err := d.emit(ctx, res.Ref(), reservation.EventTypeInventoryConnected, annotations); err != nil {
		return snapshot, err
	}
	return res, nil
}

// requestStock asks for the stock hold.
func (d Deps) requestStock(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	res, err := snapshotAs[reservation.Reservation](snapshot)
	if err != nil {
		return snapshot, err
	}

	annotations := forward(evt, event.AnnotationRemote, event.AnnotationInventoryID, event.AnnotationOrderID)
	if err := d.emit(ctx, res.Ref(), reservation.EventTypeRequested, annotations); err != nil {
		return snapshot, err
	}
	return res, nil
}

// confirmReservation executes the remote "reserve" command. On refusal the
// persisted status is restored to the pre-attempt state and the rejection is
// recorded before the failure surfaces.
func (d Deps) confirmReservation(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	res, err := snapshotAs[reservation.Reservation](snapshot)
	if err != nil {
		return snapshot, err
	}

	body := map[string]any{
		"reservation_id": res.ID,
		"order_id":       res.OrderID,
		"sku":            res.SKU,
		"quantity":       res.Quantity,
	}
	if _, err := remote.FollowCommand(ctx, d.Remote, evt.Annotation(event.AnnotationRemote), "reserve", body); err != nil {
		failure := annotate(nil,
			event.AnnotationOrderID, res.OrderID,
			event.AnnotationReason, err.Error(),
		)
		return snapshot, d.compensate(ctx, snapshot, machine.State(reservation.StatusConnected), reservation.EventTypeRejected, failure, err)
	}

	annotations := annotate(forward(evt, event.AnnotationInventoryID, event.AnnotationOrderID))
	if err := d.emit(ctx, res.Ref(), reservation.EventTypeConfirmed, annotations); err != nil {
		return snapshot, err
	}
	if res.InventoryID != "" {
		stockRef := entity.Ref{Kind: entity.KindInventory, ID: res.InventoryID}
		mirror := annotate(nil,
			event.AnnotationReservationID, res.ID,
			event.AnnotationQuantity, formatQuantity(res.Quantity),
		)
		if err := d.emit(ctx, stockRef, inventory.EventTypeStockReserved, mirror); err != nil {
			return snapshot, err
		}
	}
	return res, nil
}

// reportReservationSuccess advances the order leg.
func (d Deps) reportReservationSuccess(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	res, err := snapshotAs[reservation.Reservation](snapshot)
	if err != nil {
		return snapshot, err
	}

	orderRef := entity.Ref{Kind: entity.KindOrder, ID: res.OrderID}
	annotations := annotate(nil, event.AnnotationReservationID, res.ID)
	if err := d.emit(ctx, orderRef, order.EventTypeReservationSucceeded, annotations); err != nil {
		return snapshot, err
	}
	return res, nil
}

// reportReservationFailure propagates the refusal to the order.
func (d Deps) reportReservationFailure(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	res, err := snapshotAs[reservation.Reservation](snapshot)
	if err != nil {
		return snapshot, err
	}

	orderRef := entity.Ref{Kind: entity.KindOrder, ID: res.OrderID}
	annotations := annotate(forward(evt, event.AnnotationReason),
		event.AnnotationReservationID, res.ID,
	)
	if err := d.emit(ctx, orderRef, order.EventTypeReservationFailed, annotations); err != nil {
		return snapshot, err
	}
	return res, nil
}

// restockInventory returns a released hold to stock.
func (d Deps) restockInventory(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	res, err := snapshotAs[reservation.Reservation](snapshot)
	if err != nil {
		return snapshot, err
	}
	if res.InventoryID == "" {
		return res, nil
	}

	stockRef := entity.Ref{Kind: entity.KindInventory, ID: res.InventoryID}
	annotations := annotate(nil,
		event.AnnotationReservationID, res.ID,
		event.AnnotationQuantity, formatQuantity(res.Quantity),
	)
	if err := d.emit(ctx, stockRef, inventory.EventTypeRestocked, annotations); err != nil {
		return snapshot, err
	}
	return res, nil
}
