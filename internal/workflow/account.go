package workflow

import (
	"context"

	"github.com/louisbranch/orderflow/internal/domain/account"
	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/machine"
)

func (d Deps) accountDefinition() (*machine.Definition, error) {
	return machine.NewDefinition(entity.KindAccount, machine.State(account.StatusNew), []machine.Transition{
		{
			Source: machine.State(account.StatusNew),
			Event:  account.EventTypeCreated,
			Target: machine.State(account.StatusCreated),
			Action: machine.ActionFunc(d.registerAccount),
		},
		{
			Source: machine.State(account.StatusCreated),
			Event:  account.EventTypeActivated,
			Target: machine.State(account.StatusActive),
		},
		{
			Source: machine.State(account.StatusActive),
			Event:  account.EventTypeSuspended,
			Target: machine.State(account.StatusSuspended),
		},
		{
			Source: machine.State(account.StatusSuspended),
			Event:  account.EventTypeReactivated,
			Target: machine.State(account.StatusActive),
		},
		{
			Source: machine.State(account.StatusActive),
			Event:  account.EventTypeClosed,
			Target: machine.State(account.StatusClosed),
		},
		{
			Source: machine.State(account.StatusSuspended),
			Event:  account.EventTypeClosed,
			Target: machine.State(account.StatusClosed),
		},
	})
}

// registerAccount activates a freshly created account. There is no approval
// step; accounts are usable as soon as creation replays.
func (d Deps) registerAccount(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	acct, err := snapshotAs[account.Account](snapshot)
	if err != nil {
		return snapshot, err
	}
	if err := d.emit(ctx, acct.Ref(), account.EventTypeActivated, nil); err != nil {
		return snapshot, err
	}
	return acct, nil
}
