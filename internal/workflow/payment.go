package workflow

import (
	"context"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/order"
	"github.com/louisbranch/orderflow/internal/domain/payment"
	"github.com/louisbranch/orderflow/internal/machine"
	"github.com/louisbranch/orderflow/internal/remote"
)

func (d Deps) paymentDefinition() (*machine.Definition, error) {
	return machine.NewDefinition(entity.KindPayment, machine.State(payment.StatusNew), []machine.Transition{
		{
			Source: machine.State(payment.StatusNew),
			Event:  payment.EventTypeCreated,
			Target: machine.State(payment.StatusCreated),
			Action: machine.ActionFunc(d.connectOrderPayment),
		},
		{
			Source: machine.State(payment.StatusCreated),
			Event:  payment.EventTypeOrderConnected,
			Target: machine.State(payment.StatusConnected),
			Action: machine.ActionFunc(d.requestPaymentProcessing),
		},
		{
			Source: machine.State(payment.StatusConnected),
			Event:  payment.EventTypeRequested,
			Target: machine.State(payment.StatusPending),
			Action: machine.ActionFunc(d.authorizePayment),
		},
		// Requested can also arrive before the order link is replayed, e.g.
		// when a payment is retried against a trimmed log.
		{
			Source: machine.State(payment.StatusCreated),
			Event:  payment.EventTypeRequested,
			Target: machine.State(payment.StatusPending),
			Action: machine.ActionFunc(d.authorizePayment),
		},
		{
			Source: machine.State(payment.StatusPending),
			Event:  payment.EventTypeProcessed,
			Target: machine.State(payment.StatusProcessed),
			Action: machine.ActionFunc(d.settlePayment),
		},
		{
			Source: machine.State(payment.StatusPending),
			Event:  payment.EventTypeFailed,
			Target: machine.State(payment.StatusFailed),
			Action: machine.ActionFunc(d.reportPaymentFailure),
		},
		{
			Source: machine.State(payment.StatusConnected),
			Event:  payment.EventTypeFailed,
			Target: machine.State(payment.StatusFailed),
			Action: machine.ActionFunc(d.reportPaymentFailure),
		},
		{
			Source: machine.State(payment.StatusCreated),
			Event:  payment.EventTypeFailed,
			Target: machine.State(payment.StatusFailed),
			Action: machine.ActionFunc(d.reportPaymentFailure),
		},
	})
}

// connectOrderPayment links the payment back to its order.
func (d Deps) connectOrderPayment(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	pay, err := snapshotAs[payment.Payment](snapshot)
	if err != nil {
		return snapshot, err
	}

	annotations := annotate(forward(evt, event.AnnotationRemote),
		event.AnnotationOrderID, pay.OrderID,
	)
	if err := d.emit(ctx, pay.Ref(), payment.EventTypeOrderConnected, annotations); err != nil {
		return snapshot, err
	}

	orderRef := entity.Ref{Kind: entity.KindOrder, ID: pay.OrderID}
	mirror := annotate(nil, event.AnnotationPaymentID, pay.ID)
	if err := d.emit(ctx, orderRef, order.EventTypePaymentConnected, mirror); err != nil {
		return snapshot, err
	}
	return pay, nil
}

// requestPaymentProcessing starts authorization.
func (d Deps) requestPaymentProcessing(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	pay, err := snapshotAs[payment.Payment](snapshot)
	if err != nil {
		return snapshot, err
	}

	annotations := forward(evt, event.AnnotationRemote, event.AnnotationOrderID)
	if err := d.emit(ctx, pay.Ref(), payment.EventTypeRequested, annotations); err != nil {
		return snapshot, err
	}
	return pay, nil
}

// authorizePayment executes the remote "authorize" command. A decline
// restores the pre-attempt status and records the failure before the remote
// error surfaces.
func (d Deps) authorizePayment(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	pay, err := snapshotAs[payment.Payment](snapshot)
	if err != nil {
		return snapshot, err
	}

	body := map[string]any{
		"payment_id": pay.ID,
		"order_id":   pay.OrderID,
		"amount":     pay.Amount,
		"currency":   pay.Currency,
	}
	if _, err := remote.FollowCommand(ctx, d.Remote, evt.Annotation(event.AnnotationRemote), "authorize", body); err != nil {
		failure := annotate(nil,
			event.AnnotationOrderID, pay.OrderID,
			event.AnnotationReason, err.Error(),
		)
		return snapshot, d.compensate(ctx, snapshot, machine.State(pay.Status), payment.EventTypeFailed, failure, err)
	}

	annotations := forward(evt, event.AnnotationRemote, event.AnnotationOrderID)
	if err := d.emit(ctx, pay.Ref(), payment.EventTypeProcessed, annotations); err != nil {
		return snapshot, err
	}
	return pay, nil
}

// settlePayment executes the remote "settle" command and reports the
// settled payment back to the order. A settle failure restores the pending
// status so a later retry can re-run the settlement step.
func (d Deps) settlePayment(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	pay, err := snapshotAs[payment.Payment](snapshot)
	if err != nil {
		return snapshot, err
	}

	body := map[string]any{
		"payment_id": pay.ID,
		"order_id":   pay.OrderID,
		"amount":     pay.Amount,
		"currency":   pay.Currency,
	}
	if _, err := remote.FollowCommand(ctx, d.Remote, evt.Annotation(event.AnnotationRemote), "settle", body); err != nil {
		failure := annotate(nil,
			event.AnnotationOrderID, pay.OrderID,
			event.AnnotationReason, err.Error(),
		)
		return snapshot, d.compensate(ctx, snapshot, machine.State(payment.StatusPending), payment.EventTypeFailed, failure, err)
	}

	pay.UpdatedAt = d.now().UTC()
	if _, err := d.Entities.Update(ctx, pay); err != nil {
		return snapshot, err
	}

	orderRef := entity.Ref{Kind: entity.KindOrder, ID: pay.OrderID}
	annotations := annotate(nil, event.AnnotationPaymentID, pay.ID)
	if err := d.emit(ctx, orderRef, order.EventTypePaymentSucceeded, annotations); err != nil {
		return snapshot, err
	}
	return pay, nil
}

// reportPaymentFailure propagates the decline to the order.
func (d Deps) reportPaymentFailure(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	pay, err := snapshotAs[payment.Payment](snapshot)
	if err != nil {
		return snapshot, err
	}

	orderRef := entity.Ref{Kind: entity.KindOrder, ID: pay.OrderID}
	annotations := annotate(forward(evt, event.AnnotationReason),
		event.AnnotationPaymentID, pay.ID,
	)
	if err := d.emit(ctx, orderRef, order.EventTypePaymentFailed, annotations); err != nil {
		return snapshot, err
	}
	return pay, nil
}
