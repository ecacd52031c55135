// Package workflow wires the order-processing saga: the per-domain
// transition tables and the side-effecting actions bound to them.
//
// Actions follow one contract: invoked for a historical event they return
// the snapshot untouched; invoked for the triggering event they perform
// their single step (entity writes, remote commands, event emissions) and
// fold the result into the snapshot. Progress between aggregates happens
// only through emitted events, never by calling another machine directly.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/machine"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/platform/id"
	"github.com/louisbranch/orderflow/internal/remote"
	"github.com/louisbranch/orderflow/internal/storage"
)

// Deps carries the collaborators shared by every saga action.
type Deps struct {
	Entities storage.EntityStore
	Emitter  *event.Emitter
	Remote   remote.Proxy

	// PaymentGateway is the link resolved for payment authorize and settle
	// commands. Attached to payment events as the remote annotation.
	PaymentGateway string

	// Now and NewID default to time.Now and id.NewID when nil.
	Now   func() time.Time
	NewID func() (string, error)
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) newID() (string, error) {
	if d.NewID != nil {
		return d.NewID()
	}
	return id.NewID()
}

func (d Deps) emit(ctx context.Context, ref entity.Ref, eventType event.Type, annotations map[string]string) error {
	if _, err := d.Emitter.Emit(ctx, event.EmitInput{
		Entity:      ref,
		Type:        eventType,
		Annotations: annotations,
	}); err != nil {
		return fmt.Errorf("emit %s for %s: %w", eventType, ref, err)
	}
	return nil
}

// Definitions builds the transition tables for all six aggregate domains.
func (d Deps) Definitions() (map[entity.Kind]*machine.Definition, error) {
	definitions := make(map[entity.Kind]*machine.Definition, len(entity.Kinds()))
	for _, build := range []func() (*machine.Definition, error){
		d.accountDefinition,
		d.orderDefinition,
		d.paymentDefinition,
		d.inventoryDefinition,
		d.reservationDefinition,
		d.warehouseDefinition,
	} {
		def, err := build()
		if err != nil {
			return nil, err
		}
		definitions[def.Kind()] = def
	}
	return definitions, nil
}

// compensate restores the persisted status to the state the triggering
// transition started from and records the designated failure event, so the
// log explains the rollback. The remote cause is returned for the caller to
// surface.
func (d Deps) compensate(ctx context.Context, snapshot entity.Aggregate, restore machine.State, failure event.Type, annotations map[string]string, cause error) error {
	if _, err := d.Entities.Update(ctx, snapshot.WithStatusValue(string(restore))); err != nil {
		return errors.Join(cause, fmt.Errorf("restore %s status: %w", snapshot.Ref(), err))
	}
	if err := d.emit(ctx, snapshot.Ref(), failure, annotations); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// forward copies the named annotations from a triggering event onto the
// next event in the chain, so links survive across aggregate boundaries.
func forward(evt event.Event, keys ...string) map[string]string {
	var annotations map[string]string
	for _, key := range keys {
		value := evt.Annotation(key)
		if value == "" {
			continue
		}
		if annotations == nil {
			annotations = make(map[string]string, len(keys))
		}
		annotations[key] = value
	}
	return annotations
}

// annotate extends a forwarded annotation map with key/value pairs.
func annotate(base map[string]string, pairs ...string) map[string]string {
	if base == nil {
		base = make(map[string]string, len(pairs)/2)
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		base[pairs[i]] = pairs[i+1]
	}
	return base
}

func parseQuantity(raw string) (int64, error) {
	quantity, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || quantity <= 0 {
		return 0, apperrors.WithMetadata(apperrors.CodePreconditionViolation,
			"event quantity annotation is not a positive integer",
			map[string]string{"quantity": raw},
		)
	}
	return quantity, nil
}

func formatQuantity(quantity int64) string {
	return strconv.FormatInt(quantity, 10)
}

// snapshotAs narrows the replayed aggregate to the concrete domain type the
// action operates on.
func snapshotAs[T entity.Aggregate](snapshot entity.Aggregate) (T, error) {
	typed, ok := snapshot.(T)
	if !ok {
		var zero T
		return zero, apperrors.WithMetadata(apperrors.CodePreconditionViolation,
			fmt.Sprintf("snapshot is %T, want %T", snapshot, zero),
			map[string]string{"ref": snapshot.Ref().String()},
		)
	}
	return typed, nil
}
