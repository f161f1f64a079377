// Package shared holds the domain events and error vocabulary common to
// every domain package. Nothing here imports outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors for cross-cutting failure classes. Domain-specific
// rejections (insufficient funds, expired offer) live next to their
// aggregates; only infrastructure-shaped failures belong here.
var (
	// ErrStorageUnavailable marks a store that cannot currently serve
	// reads or writes, for example when its circuit breaker is open.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTimeout marks an operation that exceeded its deadline.
	ErrTimeout = errors.New("operation timeout")

	// ErrConcurrentModification marks a lost optimistic-lock race.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// IsRetryable reports whether the failure is transient: the same call
// may succeed if repeated after a backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}

// DomainError annotates a failure with the aggregate and operation it
// came from while staying matchable against its sentinel class.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
}

// Unwrap exposes the cause chain, falling back to the sentinel class
// when no underlying error was recorded.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the sentinel class and the wrapped cause.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// WrapError builds a DomainError around an underlying failure.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}
