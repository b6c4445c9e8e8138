// Package errs defines the tagged sum of error kinds the convergence
// engine can fail with. There is no exception hierarchy: every failure
// path returns a *Error carrying one of the Kind constants, inspected
// with errors.As and compared with Is.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a convergence-engine failure.
type Kind string

const (
	Format              Kind = "format"
	Overflow            Kind = "overflow"
	ClockDrift          Kind = "clock_drift"
	DuplicateNode       Kind = "duplicate_node"
	Network             Kind = "network"
	ServerError         Kind = "server_error"
	SyncStuck           Kind = "sync_stuck"
	MinPathLengthError  Kind = "min_path_length"
	MaxTimeError        Kind = "max_time"
	MinTimeError        Kind = "min_time"
)

// Error is the single error type produced by this module. Kind drives
// caller-side policy (fatal vs. retriable); Op names the operation that
// failed; Err, when set, wraps an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, letting
// callers write errors.Is(err, errs.New(errs.SyncStuck, "", "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap constructs an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Retriable reports whether Kind indicates a transient, caller-retriable
// condition (Network, ServerError) as opposed to a fatal program-bug or
// clock-skew condition.
func (k Kind) Retriable() bool {
	switch k {
	case Network, ServerError:
		return true
	default:
		return false
	}
}
