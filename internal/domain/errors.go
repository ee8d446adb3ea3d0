package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Inventory errors
	ErrTicketTypeNotFound    = errors.New("ticket type not found")
	ErrInventoryExists       = errors.New("inventory already provisioned")
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// Lock errors
	ErrOperationInProgress = errors.New("operation already in progress")

	// Hold errors
	ErrHoldNotFound     = errors.New("hold not found")
	ErrAlreadyTerminal  = errors.New("hold already released, expired or converted")
	ErrQuantityMismatch = errors.New("purchase quantity does not match held quantity")

	// Alert errors
	ErrAlertNotFound = errors.New("alert not found")

	// Validation errors
	ErrInvalidEventID       = errors.New("invalid event id")
	ErrInvalidTicketTypeID  = errors.New("invalid ticket type id")
	ErrInvalidHoldID        = errors.New("invalid hold id")
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrInvalidHoldType      = errors.New("invalid hold type")
	ErrInvalidHoldDuration  = errors.New("hold duration must be between zero and one year")
	ErrInvalidTotalQuantity = errors.New("total quantity cannot be negative")
	ErrInvalidSoldQuantity  = errors.New("sold quantity must be between zero and total quantity")

	// ErrInternal marks failures that are not business-rule outcomes
	ErrInternal = errors.New("internal inventory error")
)

// ConflictError carries the conflict resolution for a request that could not be served in full
type ConflictError struct {
	Resolution *ConflictResolution
}

func (e *ConflictError) Error() string {
	if e.Resolution == nil {
		return ErrInsufficientInventory.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInsufficientInventory.Error(), e.Resolution.Message)
}

// Unwrap lets errors.Is match ErrInsufficientInventory
func (e *ConflictError) Unwrap() error {
	return ErrInsufficientInventory
}

// NewConflictError wraps a deny-request resolution
func NewConflictError(resolution *ConflictResolution) error {
	return &ConflictError{Resolution: resolution}
}

// ConflictFrom extracts the conflict resolution from an error chain
func ConflictFrom(err error) (*ConflictResolution, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) && ce.Resolution != nil {
		return ce.Resolution, true
	}
	return nil, false
}

// InternalError wraps an unexpected failure so callers can tell it apart from business failures
func InternalError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTicketTypeNotFound) ||
		errors.Is(err, ErrHoldNotFound) ||
		errors.Is(err, ErrAlertNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidEventID) ||
		errors.Is(err, ErrInvalidTicketTypeID) ||
		errors.Is(err, ErrInvalidHoldID) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidHoldType) ||
		errors.Is(err, ErrInvalidHoldDuration) ||
		errors.Is(err, ErrInvalidTotalQuantity) ||
		errors.Is(err, ErrInvalidSoldQuantity)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInsufficientInventory) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrInventoryExists)
}

// IsRetryableError reports transient failures the caller may retry after a short backoff
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrOperationInProgress)
}

// IsInternalError checks if the error is an unexpected internal failure
func IsInternalError(err error) bool {
	return errors.Is(err, ErrInternal)
}
