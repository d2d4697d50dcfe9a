// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
}

// NewNotFound builds a NotFoundError for the given entity and id.
func NewNotFound(entity string, id int) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError rejects malformed input synchronously at create/update
// time; nothing is persisted when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NewValidation builds a ValidationError with a formatted reason.
func NewValidation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// TransitionError rejects an illegal state-machine transition; the entity is
// left unchanged.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// NewTransition builds a TransitionError.
func NewTransition(from, to string) error {
	return &TransitionError{From: from, To: to}
}

// ConflictError rejects an operation that would break a reference another
// record still holds, e.g. deleting a template a campaign step points at.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// NewConflict builds a ConflictError with a formatted reason.
func NewConflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsTransition reports whether err is a TransitionError.
func IsTransition(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}
