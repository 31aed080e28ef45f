package entities

import (
	"errors"
	"fmt"
)

// Error kinds returned by the stake engine. Callers match them with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAlreadyAnswered        = errors.New("invite already answered")
	ErrTransientIO            = errors.New("transient store failure")
)

// ValidationError describes a rejected input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StateTransitionError records the attempted transition
type StateTransitionError struct {
	From StakeStatus
	To   StakeStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition stake from %s to %s", e.From, e.To)
}

func (e *StateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// IsRetryable reports whether the caller may retry the failed operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientIO)
}
