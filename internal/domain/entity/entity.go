// Package entity defines the aggregate identity types shared by all
// order-processing domains.
package entity

import (
	"fmt"
	"strings"
)

// Kind identifies an aggregate domain.
type Kind string

const (
	// KindAccount identifies account aggregates.
	KindAccount Kind = "account"
	// KindOrder identifies order aggregates.
	KindOrder Kind = "order"
	// KindPayment identifies payment aggregates.
	KindPayment Kind = "payment"
	// KindInventory identifies inventory aggregates.
	KindInventory Kind = "inventory"
	// KindReservation identifies reservation aggregates.
	KindReservation Kind = "reservation"
	// KindWarehouse identifies warehouse aggregates.
	KindWarehouse Kind = "warehouse"
)

// Kinds returns all aggregate kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindAccount, KindOrder, KindPayment, KindInventory, KindReservation, KindWarehouse}
}

// IsValid reports whether the kind is a known aggregate domain.
func (k Kind) IsValid() bool {
	switch k {
	case KindAccount, KindOrder, KindPayment, KindInventory, KindReservation, KindWarehouse:
		return true
	}
	return false
}

// Ref identifies an aggregate. It is a weak back-reference carried by events,
// never an ownership edge.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// Validate checks the reference for a known kind and non-empty id.
func (r Ref) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("unknown aggregate kind %q", r.Kind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("aggregate id is required")
	}
	return nil
}

// String renders the reference as "kind/id".
func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

// ParseRef parses a "kind/id" reference string.
func ParseRef(value string) (Ref, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		return Ref{}, fmt.Errorf("malformed aggregate ref %q", value)
	}
	ref := Ref{Kind: Kind(kind), ID: id}
	if err := ref.Validate(); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// Aggregate is an entity whose authoritative status is computed by event
// replay. The persisted status field on any aggregate is only a cache,
// refreshed by the last completed replication.
type Aggregate interface {
	// Ref returns the aggregate's identity.
	Ref() Ref
	// StatusValue returns the cached status as a string.
	StatusValue() string
	// WithStatusValue returns a copy of the aggregate with the cached
	// status replaced.
	WithStatusValue(status string) Aggregate
}
