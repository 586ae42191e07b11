package providers

import (
	"errors"
	"fmt"
)

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	// KindNetwork covers connection errors, timeouts and non-2xx statuses.
	KindNetwork ErrorKind = "network"
	// KindMalformed covers bodies that are not one of the accepted shapes.
	KindMalformed ErrorKind = "malformed"
	// KindValidation covers rejected input before any call is made.
	KindValidation ErrorKind = "validation"
)

var (
	// ErrTruncated marks a completion cut off by the max token budget.
	ErrTruncated = errors.New("completion truncated at token limit")

	// ErrUnrecognizedShape is returned for bodies matching no known shape.
	ErrUnrecognizedShape = errors.New("unrecognized response shape")

	// ErrEmptyInput is returned when the idea text is blank.
	ErrEmptyInput = errors.New("empty input")
)

// Error is a structured adapter error.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// AsError extracts an *Error from err. A plain error is wrapped as
// KindNetwork since it came from the transport.
func AsError(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewError(KindNetwork, op, err)
}
