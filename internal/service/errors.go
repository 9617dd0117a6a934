package service

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable error classification surfaced to API
// clients alongside a human message.
type ErrorKind string

const (
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindConflict           ErrorKind = "CONFLICT"
	KindPreconditionFailed ErrorKind = "PRECONDITION_FAILED"
	KindUpstream           ErrorKind = "UPSTREAM_ERROR"
	KindValidation         ErrorKind = "VALIDATION_ERROR"
)

// Error is a classified, user-visible failure. Provider and storage errors
// are translated into one of these at each operation's boundary; anything
// unclassified stays an internal error.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification from an error chain, or "" when the
// error is internal.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
