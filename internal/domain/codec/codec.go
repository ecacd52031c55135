// Package codec converts aggregates to and from their persisted JSON form.
//
// Stores persist every aggregate as one row keyed by (kind, id) with a JSON
// payload, so a single codec covers all six domains instead of per-domain
// row mappers.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/orderflow/internal/domain/account"
	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/inventory"
	"github.com/louisbranch/orderflow/internal/domain/order"
	"github.com/louisbranch/orderflow/internal/domain/payment"
	"github.com/louisbranch/orderflow/internal/domain/reservation"
	"github.com/louisbranch/orderflow/internal/domain/warehouse"
)

// Encode marshals an aggregate into its persisted JSON payload.
func Encode(agg entity.Aggregate) ([]byte, error) {
	if agg == nil {
		return nil, fmt.Errorf("aggregate is required")
	}
	payload, err := json.Marshal(agg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", agg.Ref(), err)
	}
	return payload, nil
}

// Decode unmarshals a persisted JSON payload into the typed aggregate for
// the given kind.
func Decode(kind entity.Kind, payload []byte) (entity.Aggregate, error) {
	switch kind {
	case entity.KindAccount:
		var a account.Account
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("unmarshal account: %w", err)
		}
		return a, nil
	case entity.KindOrder:
		var o order.Order
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		return o, nil
	case entity.KindPayment:
		var p payment.Payment
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal payment: %w", err)
		}
		return p, nil
	case entity.KindInventory:
		var i inventory.Inventory
		if err := json.Unmarshal(payload, &i); err != nil {
			return nil, fmt.Errorf("unmarshal inventory: %w", err)
		}
		return i, nil
	case entity.KindReservation:
		var r reservation.Reservation
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("unmarshal reservation: %w", err)
		}
		return r, nil
	case entity.KindWarehouse:
		var w warehouse.Warehouse
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("unmarshal warehouse: %w", err)
		}
		return w, nil
	}
	return nil, fmt.Errorf("unknown aggregate kind %q", kind)
}
