package domain

import "fmt"

// Error types for consistent error handling across the loyalty engine.

// ErrNotFound indicates an account, admin or other resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the caller lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrInsufficientBalance indicates a redemption larger than the point balance.
type ErrInsufficientBalance struct {
	Available int64
	Required  int64
}

func (e *ErrInsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient points: available=%d required=%d", e.Available, e.Required)
}

// ErrConfiguration indicates a malformed level table or program file.
type ErrConfiguration struct {
	Reason string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. duplicate email).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrAccountInactive indicates a point mutation on a deactivated account.
type ErrAccountInactive struct {
	AccountID string
}

func (e *ErrAccountInactive) Error() string {
	return fmt.Sprintf("account is inactive: %s", e.AccountID)
}

// ErrLedgerMismatch indicates the stored balance disagrees with the ledger.
// It aborts the mutation that would have produced it.
type ErrLedgerMismatch struct {
	AccountID string
	Stored    int64
	Replayed  int64
}

func (e *ErrLedgerMismatch) Error() string {
	return fmt.Sprintf("ledger mismatch for account %s: stored=%d replayed=%d", e.AccountID, e.Stored, e.Replayed)
}

// ErrExternalService wraps a failure talking to an outbound dependency.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service %s: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error { return e.Err }
