package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrAlreadyReconciled indicates a transaction already has a persisted
// reconciliation record. Distinct from ErrNotFound so Confirm callers can
// tell "someone beat you to it" from "bad transaction id".
type ErrAlreadyReconciled struct {
	TransactionID string
	RecordID      string
}

func (e *ErrAlreadyReconciled) Error() string {
	return fmt.Sprintf("transaction %s already reconciled (record %s)", e.TransactionID, e.RecordID)
}

// ErrIntegrationNotConfigured indicates the tenant has no active AdvBox
// integration. Distinct from transient fetch failures.
type ErrIntegrationNotConfigured struct {
	TenantID string
}

func (e *ErrIntegrationNotConfigured) Error() string {
	return fmt.Sprintf("advbox integration not configured for tenant %s", e.TenantID)
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
