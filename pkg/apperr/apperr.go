// Package apperr classifies failures so callers can report them without
// leaking internals: configuration, transport, validation and not-found.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindTransport     Kind = "transport"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindUnauthorized  Kind = "unauthorized"
	KindInternal      Kind = "internal"
)

// Error carries a short user-facing message next to the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Configuration(message string) *Error {
	return New(KindConfiguration, message)
}

func Transport(message string, err error) *Error {
	return Wrap(KindTransport, message, err)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-facing message of err. Errors that were not
// classified collapse to fallback so raw internals never reach a caller.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}
