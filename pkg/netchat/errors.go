package netchat

import (
	"errors"
	"fmt"
)

// ErrorKind collapses the NetChat failure modes the bridge cares about.
// Callers do not distinguish further than this.
type ErrorKind string

const (
	KindServerError  ErrorKind = "server_error"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnauthorized ErrorKind = "unauthorized"
	KindTransport    ErrorKind = "transport"
	KindDeserialize  ErrorKind = "deserialize_error"
)

// Error is a categorized NetChat call failure.
type Error struct {
	Kind  ErrorKind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("netchat %s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("netchat %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// KindOf returns the kind of a NetChat error, or KindTransport for
// anything unrecognized.
func KindOf(err error) ErrorKind {
	var ncErr *Error
	if errors.As(err, &ncErr) {
		return ncErr.Kind
	}
	return KindTransport
}
