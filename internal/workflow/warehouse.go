package workflow

import (
	"context"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/warehouse"
	"github.com/louisbranch/orderflow/internal/machine"
)

func (d Deps) warehouseDefinition() (*machine.Definition, error) {
	return machine.NewDefinition(entity.KindWarehouse, machine.State(warehouse.StatusNew), []machine.Transition{
		{
			Source: machine.State(warehouse.StatusNew),
			Event:  warehouse.EventTypeCreated,
			Target: machine.State(warehouse.StatusCreated),
			Action: machine.ActionFunc(d.registerWarehouse),
		},
		{
			Source: machine.State(warehouse.StatusCreated),
			Event:  warehouse.EventTypeOpened,
			Target: machine.State(warehouse.StatusOpen),
		},
		{
			Source: machine.State(warehouse.StatusOpen),
			Event:  warehouse.EventTypeClosed,
			Target: machine.State(warehouse.StatusClosed),
		},
		{
			Source: machine.State(warehouse.StatusClosed),
			Event:  warehouse.EventTypeOpened,
			Target: machine.State(warehouse.StatusOpen),
		},
	})
}

// registerWarehouse opens a freshly created warehouse for operations.
func (d Deps) registerWarehouse(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	if !triggering {
		return snapshot, nil
	}
	site, err := snapshotAs[warehouse.Warehouse](snapshot)
	if err != nil {
		return snapshot, err
	}
	if err := d.emit(ctx, site.Ref(), warehouse.EventTypeOpened, nil); err != nil {
		return snapshot, err
	}
	return site, nil
}
