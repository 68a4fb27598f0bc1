package domain

import "fmt"

// Error types for consistent error handling across the BFF.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an upstream service call.
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

// ErrUpstreamRejected indicates the upstream API answered 2xx but with
// status != "success" in the response envelope.
type ErrUpstreamRejected struct {
	Operation string
	Message   string
}

func (e *ErrUpstreamRejected) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upstream rejected operation: %s", e.Operation)
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
// Validation failures never reach the upstream API.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates a missing or invalid session token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates the session user may not perform the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrConflict indicates the operation clashes with existing state,
// e.g. switching commercial role after facilities exist.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrPartialSuccess indicates a multi-call sequence committed partway:
// an earlier upstream call succeeded but a follow-up failed. Ref names
// the committed resource so the caller can retry only the failed part.
type ErrPartialSuccess struct {
	Operation string
	Ref       string
	Err       error
}

func (e *ErrPartialSuccess) Error() string {
	return fmt.Sprintf("partial success in %s (ref %s): %v", e.Operation, e.Ref, e.Err)
}

func (e *ErrPartialSuccess) Unwrap() error {
	return e.Err
}
