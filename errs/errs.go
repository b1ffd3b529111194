package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the command and scheduler boundaries.
type Kind string

const (
	Validation    Kind = "VALIDATION"
	NotFound      Kind = "NOT_FOUND"
	Permission    Kind = "PERMISSION"
	DataIntegrity Kind = "DATA_INTEGRITY"
	Persistence   Kind = "PERSISTENCE"
	Internal      Kind = "INTERNAL"
)

// Error is a typed domain error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, ErrNotFound) works
// for any NotFound error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates a new Error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and context to an existing error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound    = &Error{Kind: NotFound}
	ErrPermission  = &Error{Kind: Permission}
	ErrPersistence = &Error{Kind: Persistence}
	ErrValidation  = &Error{Kind: Validation}
)

// KindOf returns the kind of err, or Internal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
