// Package apierror defines the tagged error type used by every fallible
// core operation. The Kind maps to an HTTP status at the boundary.
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	// BadInput is invalid caller input: charset, length, type coercion,
	// regex mismatch, malformed flow source, missing required field.
	BadInput Kind = iota
	// Conflict is an id collision on create or update-id.
	Conflict
	// NotFound is a missing target entity or constraint row.
	NotFound
	// Internal is unexpected internal state: missing mapping, codec
	// failure, interpreter overflow, serialisation corruption.
	Internal
)

// Error carries a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case BadInput:
		return 400
	case Conflict:
		return 403
	case NotFound:
		return 404
	default:
		return 500
	}
}

// New creates an Error with the given kind and message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// BadInputf creates a BadInput error.
func BadInputf(format string, args ...any) *Error {
	return New(BadInput, format, args...)
}

// Conflictf creates a Conflict error.
func Conflictf(format string, args ...any) *Error {
	return New(Conflict, format, args...)
}

// NotFoundf creates a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, format, args...)
}

// Internalf creates an Internal error.
func Internalf(format string, args ...any) *Error {
	return New(Internal, format, args...)
}

// StatusOf extracts the HTTP status from any error. Non-tagged errors
// are treated as internal.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status()
	}
	return 500
}

// IsKind reports whether err is a tagged error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
