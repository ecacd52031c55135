// Package account defines the account aggregate and its lifecycle events.
package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/platform/errors"
	"github.com/louisbranch/orderflow/internal/platform/id"
)

// Status is the replay-derived lifecycle status of an account.
type Status string

const (
	// StatusNew is the machine state before the creation event is replayed.
	StatusNew Status = "new"
	// StatusCreated indicates the account exists but is not yet usable.
	StatusCreated Status = "created"
	// StatusActive indicates the account can place orders.
	StatusActive Status = "active"
	// StatusSuspended indicates the account is temporarily blocked.
	StatusSuspended Status = "suspended"
	// StatusClosed indicates the account is permanently closed.
	StatusClosed Status = "closed"
)

// Account lifecycle events.
const (
	// EventTypeCreated records the creation of an account.
	EventTypeCreated = "account.created"
	// EventTypeActivated records account activation.
	EventTypeActivated = "account.activated"
	// EventTypeSuspended records account suspension.
	EventTypeSuspended = "account.suspended"
	// EventTypeReactivated records reactivation of a suspended account.
	EventTypeReactivated = "account.reactivated"
	// EventTypeClosed records permanent account closure.
	EventTypeClosed = "account.closed"
)

// ErrNotActive indicates an operation that requires an active account.
var ErrNotActive = errors.New(errors.CodeAccountNotActive, "account is not active")

// Account represents a customer account.
type Account struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Ref returns the aggregate identity.
func (a Account) Ref() entity.Ref {
	return entity.Ref{Kind: entity.KindAccount, ID: a.ID}
}

// StatusValue returns the cached status as a string.
func (a Account) StatusValue() string {
	return string(a.Status)
}

// WithStatusValue returns a copy with the cached status replaced.
func (a Account) WithStatusValue(status string) entity.Aggregate {
	a.Status = Status(status)
	return a
}

// CreateInput describes the data needed to create an account.
type CreateInput struct {
	Email       string
	DisplayName string
}

// Create builds a new account with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Account, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Email = strings.TrimSpace(input.Email)
	if input.Email == "" {
		return Account{}, errors.New(errors.CodeAccountEmptyEmail, "account email is required")
	}

	accountID, err := idGenerator()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}

	createdAt := now().UTC()
	return Account{
		ID:          accountID,
		Email:       input.Email,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Status:      StatusCreated,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}
