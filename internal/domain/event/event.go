// Package event defines the immutable event envelope shared by every
// aggregate log, and the ordering used for replay.
package event

import (
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
)

// Type identifies the type of a domain event. Types are dotted strings whose
// prefix names the aggregate domain, e.g. "order.account_connected".
type Type string

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "order", "payment").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// Annotation keys attached to events at creation.
const (
	// AnnotationRemote carries a resolvable link to a related remote
	// resource, consumed by workflow actions through the remote proxy.
	AnnotationRemote = "remote"
	// AnnotationAccountID carries the account connected to an order.
	AnnotationAccountID = "account_id"
	// AnnotationOrderID carries the order a payment or reservation serves.
	AnnotationOrderID = "order_id"
	// AnnotationReservationID carries the reservation an event refers to.
	AnnotationReservationID = "reservation_id"
	// AnnotationPaymentID carries the payment an event refers to.
	AnnotationPaymentID = "payment_id"
	// AnnotationInventoryID carries the inventory an event refers to.
	AnnotationInventoryID = "inventory_id"
	// AnnotationWarehouseID carries the warehouse an event refers to.
	AnnotationWarehouseID = "warehouse_id"
	// AnnotationQuantity carries a stock quantity as a decimal string.
	AnnotationQuantity = "quantity"
	// AnnotationReason carries a human-readable failure reason.
	AnnotationReason = "reason"
)

// Event represents one immutable fact about an aggregate.
//
// Events for one aggregate, once created, are never mutated or deleted.
// CreatedAt induces a strict total order used for replay, with ties broken
// by ID.
type Event struct {
	// ID is unique, assigned on append, never reused.
	ID string
	// Type identifies the kind of event within the aggregate's domain.
	Type Type
	// CreatedAt is the append timestamp used for total ordering within one
	// aggregate's log.
	CreatedAt time.Time
	// Entity identifies the owning aggregate.
	Entity entity.Ref
	// Annotations are supplementary links attached at creation.
	Annotations map[string]string
}

// Annotation returns the named annotation, or "" when absent.
func (e Event) Annotation(key string) string {
	if e.Annotations == nil {
		return ""
	}
	return e.Annotations[key]
}

// Less reports whether a orders strictly before b: ascending CreatedAt,
// ties broken by ID.
func Less(a, b Event) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// SortLog sorts events into replay order in place.
func SortLog(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}
