package event

import (
	"errors"
	"fmt"
)

// ErrInvalidEvent is matched by every *ValidationError.
var ErrInvalidEvent = errors.New("invalid event")

// ValidationError reports an event that breaks a field invariant.
type ValidationError struct {
	Event   string // Variant name of the offending event
	Field   string // First offending field
	Message string // Human-readable description of all failures
	Err     error  // Underlying validator error
}

// Error implements error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s: %s", e.Event, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Event, e.Message)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInvalidEvent) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEvent
}
