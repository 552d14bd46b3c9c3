// Package candev implements the upper-half character-device driver for a
// CAN controller: it mediates between user threads (open/read/write/
// ioctl) and a lower-half hardware driver reachable through the
// internal/hw.Controller interface.
package candev

import (
	"errors"
	"fmt"
)

// Code is the closed set of error categories spec.md §7 enumerates.
type Code string

const (
	// CodeWouldBlock is returned by a non-blocking Read/Write against an
	// empty/full ring.
	CodeWouldBlock Code = "would block"
	// CodeInterrupted is returned when a blocking wait is aborted via
	// context cancellation (candev's substitute for signal delivery).
	CodeInterrupted Code = "interrupted"
	// CodeTooManyOpens is returned when open_count is about to wrap.
	CodeTooManyOpens Code = "too many opens"
	// CodeNoSlot is returned when the RTR table is full.
	CodeNoSlot Code = "no rtr slot"
	// CodeBusy is returned internally when deferred TX-ready work is
	// already scheduled.
	CodeBusy Code = "deferred work busy"
	// CodeLowerHalf wraps any error returned by a hw.Controller method.
	CodeLowerHalf Code = "lower-half error"
	// CodeOverflow marks a latched RX ring overflow. Receive returns it to
	// the lower half that delivered the dropped frame; the read/write
	// facade never returns it, surfacing it via the next error frame or
	// discarding it if error reporting is disabled.
	CodeOverflow Code = "rx overflow"
)

// Error is the structured error type candev's facade returns.
type Error struct {
	Op    string // the facade operation that failed ("Open", "Write", ...)
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("candev: %s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("candev: %s (%s)", msg, e.Code)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is(err, candev.ErrWouldBlock) and friends by
// comparing Code alone, so a caller need not build a matching Msg/Inner.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError constructs an *Error with no wrapped cause.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps a lower-half hw.Controller failure as CodeLowerHalf,
// preserving the original error via Unwrap, the same shape go-ublk's
// WrapError gives syscall failures.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ce, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: ce.Code, Msg: ce.Msg, Inner: ce}
	}
	return &Error{Op: op, Code: CodeLowerHalf, Msg: inner.Error(), Inner: inner}
}

// Sentinel errors for errors.Is comparisons against the Code taxonomy.
var (
	ErrWouldBlock   = &Error{Code: CodeWouldBlock}
	ErrInterrupted  = &Error{Code: CodeInterrupted}
	ErrTooManyOpens = &Error{Code: CodeTooManyOpens}
	ErrNoSlot       = &Error{Code: CodeNoSlot}
	ErrBusy         = &Error{Code: CodeBusy}
)

// IsCode reports whether the first *Error in err's Unwrap chain carries
// the given Code.
func IsCode(err error, code Code) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
