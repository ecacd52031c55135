// Package errors provides structured error handling for orderflow.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Replication errors
	CodeAggregateNotFound      Code = "AGGREGATE_NOT_FOUND"
	CodeNoApplicableTransition Code = "NO_APPLICABLE_TRANSITION"
	CodePreconditionViolation  Code = "PRECONDITION_VIOLATION"
	CodeRemoteStepFailure      Code = "REMOTE_STEP_FAILURE"

	// Event errors
	CodeEventTypeEmpty   Code = "EVENT_TYPE_EMPTY"
	CodeEventEntityEmpty Code = "EVENT_ENTITY_EMPTY"

	// Machine definition errors
	CodeMachineInitialStateEmpty   Code = "MACHINE_INITIAL_STATE_EMPTY"
	CodeMachineDuplicateTransition Code = "MACHINE_DUPLICATE_TRANSITION"

	// Account errors
	CodeAccountEmptyEmail Code = "ACCOUNT_EMPTY_EMAIL"
	CodeAccountNotActive  Code = "ACCOUNT_NOT_ACTIVE"

	// Order errors
	CodeOrderEmptyAccountID Code = "ORDER_EMPTY_ACCOUNT_ID"
	CodeOrderNoLineItems    Code = "ORDER_NO_LINE_ITEMS"

	// Payment errors
	CodePaymentEmptyOrderID  Code = "PAYMENT_EMPTY_ORDER_ID"
	CodePaymentInvalidAmount Code = "PAYMENT_INVALID_AMOUNT"

	// Inventory errors
	CodeInventoryInsufficientStock Code = "INVENTORY_INSUFFICIENT_STOCK"

	// Reservation errors
	CodeReservationInvalidQuantity Code = "RESERVATION_INVALID_QUANTITY"
	CodeReservationNoInventory     Code = "RESERVATION_NO_INVENTORY"
)
