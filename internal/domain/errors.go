package domain

import "fmt"

// Error types for consistent error handling across the backend.

// ErrNotAuthenticated indicates no session user exists for an
// operation that requires one. Callers get this instead of a silent
// no-op.
type ErrNotAuthenticated struct{}

func (e *ErrNotAuthenticated) Error() string {
	return "not authenticated"
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrLimitReached indicates a coupon's redemption limit was hit.
// Scope is "coupon" (max_redemptions) or "user" (limit_per_user).
type ErrLimitReached struct {
	CouponID string
	Scope    string
	Limit    int
}

func (e *ErrLimitReached) Error() string {
	return fmt.Sprintf("redemption limit reached [%s]: coupon=%s limit=%d", e.Scope, e.CouponID, e.Limit)
}

// ErrRemoteWriteFailed indicates a write to the remote document store
// did not commit. The local state it accompanies may diverge until the
// next snapshot.
type ErrRemoteWriteFailed struct {
	Collection string
	Err        error
}

func (e *ErrRemoteWriteFailed) Error() string {
	return fmt.Sprintf("remote write failed [%s]: %v", e.Collection, e.Err)
}

func (e *ErrRemoteWriteFailed) Unwrap() error {
	return e.Err
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

// ErrDuplicate indicates a replayed idempotency key.
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate operation: %s", e.Key)
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
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
