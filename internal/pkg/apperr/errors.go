// Package apperr defines the typed failures returned by the order lifecycle
// services. Transports map a Kind to their own status codes; callers inspect
// it with KindOf or IsKind after any amount of %w wrapping.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	Validation
	InvalidState
	Immutable
	NotFound
	Conflict
	ResourceExhausted
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "VALIDATION"
	case InvalidState:
		return "INVALID_STATE"
	case Immutable:
		return "IMMUTABLE"
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case ResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// Error is a structured failure: a kind plus a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error, e.g. a unique constraint
// violation reported by the store.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the message of the first *Error in err's chain, falling
// back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
