package workflow

import (
	"context"
	"fmt"

	"github.com/louisbranch/orderflow/internal/domain/account"
	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/order"
	"github.com/louisbranch/orderflow/internal/domain/payment"
	"github.com/louisbranch/orderflow/internal/domain/reservation"
	"github.com/louisbranch/orderflow/internal/machine"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

func (d Deps) orderDefinition() (*machine.Definition, error) {
	return machine.NewDefinition(entity.KindOrder, machine.State(order.StatusNew), []machine.Transition{
		{
			Source: machine.State(order.StatusNew),
			Event:  order.EventTypeCreated,
			Target: machine.State(order.StatusCreated),
			Action: machine.ActionFunc(d.initializeOrder),
		},
		{
			Source: machine.State(order.StatusCreated),
			Event:  order.EventTypeAccountConnected,
			Target: machine.State(order.StatusAccountConnected),
			Action: machine.ActionFunc(d.requestReservation),
		},
		{
			Source: machine.State(order.StatusAccountConnected),
			Event:  order.EventTypeReservationRequested,
			Target: machine.State(order.StatusReservationPending),
			Action: machine.ActionFunc(d.createReservation),
		},
		{
			Source: machine.State(order.StatusReservationPending),
			Event:  order.EventTypeReservationSucceeded,
			Target: machine.State(order.StatusReservationSucceeded),
			Action: machine.ActionFunc(d.createPayment),
		},
		{
			Source: machine.State(order.StatusReservationPending),
			Event:  order.EventTypeReservationFailed,
			Target: machine.State(order.StatusReservationFailed),
		},
		// The payment machine drives its own steps; these transitions
		// mirror its progress onto the order without side effects.
		{
			Source: machine.State(order.StatusReservationSucceeded),
			Event:  order.EventTypePaymentCreated,
			Target: machine.State(order.StatusPaymentCreated),
		},
		// A payment created ahead of the reservation leg still advances
		// the order.
		{
			Source: machine.State(order.StatusAccountConnected),
			Event:  order.EventTypePaymentCreated,
			Target: machine.State(order.StatusPaymentCreated),
		},
		{
			Source: machine.State(order.StatusPaymentCreated),
			Event:  order.EventTypePaymentConnected,
			Target: machine.State(order.StatusPaymentPending),
		},
		{
			Source: machine.State(order.StatusPaymentPending),
			Event:  order.EventTypePaymentSucceeded,
			Target: machine.State(order.StatusPaymentSucceeded),
			Action: machine.ActionFunc(d.completeOrder),
		},
		{
			Source: machine.State(order.StatusPaymentPending),
			Event:  order.EventTypePaymentFailed,
			Target: machine.State(order.StatusPaymentFailed),
			Action: machine.ActionFunc(d.releaseReservation),
		},
		{
			Source: machine.State(order.StatusPaymentSucceeded),
			Event:  order.EventTypeCompleted,
			Target: machine.State(order.StatusCompleted),
		},
	})
}

// initializeOrder verifies the owning account is active and connects it.
func (d Deps) initializeOrder(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	ord, err := snapshotAs[order.Order](snapshot)
	if err != nil {
		return snapshot, err
	}

	ownerRef := entity.Ref{Kind: entity.KindAccount, ID: ord.AccountID}
	owner, err := d.Entities.Get(ctx, ownerRef)
	if err != nil {
		return snapshot, apperrors.Wrap(apperrors.CodePreconditionViolation,
			fmt.Sprintf("order %s references account %s", ord.ID, ord.AccountID), err)
	}
	if owner.StatusValue() != string(account.StatusActive) {
		return snapshot, apperrors.WithMetadata(apperrors.CodePreconditionViolation,
			fmt.Sprintf("account %s is %s, orders need an active account", ord.AccountID, owner.StatusValue()),
			map[string]string{"account_id": ord.AccountID, "status": owner.StatusValue()},
		)
	}

	annotations := forward(evt, event.AnnotationRemote, event.AnnotationInventoryID)
	annotations = annotate(annotations, event.AnnotationAccountID, ord.AccountID)
	if err := d.emit(ctx, ord.Ref(), order.EventTypeAccountConnected, annotations); err != nil {
		return snapshot, err
	}
	return ord, nil
}

// requestReservation starts the stock-reservation leg of the saga.
func (d Deps) requestReservation(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	ord, err := snapshotAs[order.Order](snapshot)
	if err != nil {
		return snapshot, err
	}

	annotations := forward(evt, event.AnnotationRemote, event.AnnotationInventoryID)
	if err := d.emit(ctx, ord.Ref(), order.EventTypeReservationRequested, annotations); err != nil {
		return snapshot, err
	}
	return ord, nil
}

// createReservation materializes the reservation aggregate for the order's
// first line item and seeds its log.
func (d Deps) createReservation(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	ord, err := snapshotAs[order.Order](snapshot)
	if err != nil {
		return snapshot, err
	}
	if len(ord.Items) == 0 {
		return snapshot, apperrors.New(apperrors.CodePreconditionViolation,
			fmt.Sprintf("order %s has no line items to reserve", ord.ID))
	}

	item := ord.Items[0]
	res, err := reservation.Create(reservation.CreateInput{
		OrderID:  ord.ID,
		SKU:      item.SKU,
		Quantity: item.Quantity,
	}, d.Now, d.NewID)
	if err != nil {
		return snapshot, err
	}
	if _, err := d.Entities.Put(ctx, res); err != nil {
		return snapshot, fmt.Errorf("store reservation %s: %w", res.ID, err)
	}

	ord.ReservationID = res.ID
	ord.UpdatedAt = d.now().UTC()
	if _, err := d.Entities.Update(ctx, ord); err != nil {
		return snapshot, fmt.Errorf("link reservation to order %s: %w", ord.ID, err)
	}

	annotations := forward(evt, event.AnnotationRemote, event.AnnotationInventoryID)
	annotations = annotate(annotations, event.AnnotationOrderID, ord.ID)
	if err := d.emit(ctx, res.Ref(), reservation.EventTypeCreated, annotations); err != nil {
		return snapshot, err
	}
	return ord, nil
}

// createPayment materializes the payment aggregate once stock is held.
func (d Deps) createPayment(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	ord, err := snapshotAs[order.Order](snapshot)
	if err != nil {
		return snapshot, err
	}

	pay, err := payment.Create(payment.CreateInput{
		OrderID:   ord.ID,
		AccountID: ord.AccountID,
		Amount:    ord.Total(),
	}, d.Now, d.NewID)
	if err != nil {
		return snapshot, err
	}
	if _, err := d.Entities.Put(ctx, pay); err != nil {
		return snapshot, fmt.Errorf("store payment %s: %w", pay.ID, err)
	}

	ord.PaymentID = pay.ID
	ord.UpdatedAt = d.now().UTC()
	if _, err := d.Entities.Update(ctx, ord); err != nil {
		return snapshot, fmt.Errorf("link payment to order %s: %w", ord.ID, err)
	}

	annotations := annotate(nil,
		event.AnnotationOrderID, ord.ID,
		event.AnnotationRemote, d.PaymentGateway,
	)
	if err := d.emit(ctx, pay.Ref(), payment.EventTypeCreated, annotations); err != nil {
		return snapshot, err
	}
	if err := d.emit(ctx, ord.Ref(), order.EventTypePaymentCreated, annotate(nil, event.AnnotationPaymentID, pay.ID)); err != nil {
		return snapshot, err
	}
	return ord, nil
}

// completeOrder closes the saga after settlement.
func (d Deps) completeOrder(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	ord, err := snapshotAs[order.Order](snapshot)
	if err != nil {
		return snapshot, err
	}
	if err := d.emit(ctx, ord.Ref(), order.EventTypeCompleted, nil); err != nil {
		return snapshot, err
	}
	return ord, nil
}

// releaseReservation compensates a failed payment by returning held stock.
func (d Deps) releaseReservation(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	ord, err := snapshotAs[order.Order](snapshot)
	if err != nil {
		return snapshot, err
	}
	if ord.ReservationID == "" {
		return ord, nil
	}

	resRef := entity.Ref{Kind: entity.KindReservation, ID: ord.ReservationID}
	annotations := annotate(forward(evt, event.AnnotationReason),
		event.AnnotationOrderID, ord.ID,
	)
	if err := d.emit(ctx, resRef, reservation.EventTypeReleased, annotations); err != nil {
		return snapshot, err
	}
	return ord, nil
}
