// Package apperr defines the error kinds shared by all domains.
//
// Domain packages declare their own sentinel errors on top of these kinds,
// so a caller can match either the specific error or the whole kind:
//
//	errors.Is(err, entity.ErrConversationNotFound) // specific
//	errors.Is(err, apperr.ErrNotFound)             // kind
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrPermission   = errors.New("permission denied")
	ErrTransientIO  = errors.New("transient io failure")
	ErrValidation   = errors.New("validation failed")
)

// kindError is a domain error that belongs to a kind.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NotFound returns a new error of kind ErrNotFound
func NotFound(msg string) error { return &kindError{msg: msg, kind: ErrNotFound} }

// InvalidState returns a new error of kind ErrInvalidState
func InvalidState(msg string) error { return &kindError{msg: msg, kind: ErrInvalidState} }

// Permission returns a new error of kind ErrPermission
func Permission(msg string) error { return &kindError{msg: msg, kind: ErrPermission} }

// ValidationError reports a single invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// transientError marks an infrastructure failure that is safe to retry.
type transientError struct {
	op  string
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *transientError) Unwrap() []error { return []error{ErrTransientIO, e.err} }

// Transient wraps err as ErrTransientIO. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &transientError{op: op, err: err}
}

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientIO)
}
