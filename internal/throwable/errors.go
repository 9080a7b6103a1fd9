package throwable

import (
	"fmt"
	"runtime"
	"strings"
)

// maxStackDepth bounds the program counters recorded per error.
const maxStackDepth = 64

// Stacker is implemented by errors that recorded the stack where they were
// created.
type Stacker interface {
	Callers() []uintptr
}

// stackError carries a message, an optional cause and the creation stack.
type stackError struct {
	msg   string
	cause error
	pcs   []uintptr
	// embedded is set when msg already contains the cause's text.
	embedded bool
}

func (e *stackError) Error() string {
	if e.cause == nil || e.embedded {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *stackError) Unwrap() error { return e.cause }

// Callers implements Stacker.
func (e *stackError) Callers() []uintptr { return e.pcs }

// Message returns the error's own message without its cause.
func (e *stackError) Message() string {
	if e.embedded && e.cause != nil {
		return strings.TrimSuffix(e.msg, ": "+e.cause.Error())
	}
	return e.msg
}

// multiStackError is a stackError produced by Errorf with several %w verbs.
type multiStackError struct {
	msg    string
	causes []error
	pcs    []uintptr
}

func (e *multiStackError) Error() string      { return e.msg }
func (e *multiStackError) Unwrap() []error    { return e.causes }
func (e *multiStackError) Callers() []uintptr { return e.pcs }

// Capture returns a new error recording the caller's stack.
func Capture(msg string) error {
	return &stackError{msg: msg, pcs: callers(3)}
}

// Wrap annotates err with msg and the caller's stack. It returns nil if err
// is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &stackError{msg: msg, cause: err, pcs: callers(3)}
}

// Errorf formats like fmt.Errorf, including %w, and records the caller's stack.
func Errorf(format string, args ...any) error {
	inner := fmt.Errorf(format, args...)
	pcs := callers(3)
	switch u := inner.(type) {
	case interface{ Unwrap() []error }:
		return &multiStackError{msg: inner.Error(), causes: u.Unwrap(), pcs: pcs}
	case interface{ Unwrap() error }:
		return &stackError{msg: inner.Error(), cause: u.Unwrap(), pcs: pcs, embedded: true}
	default:
		return &stackError{msg: inner.Error(), pcs: pcs}
	}
}

// callers records the stack starting skip frames above runtime.Callers.
func callers(skip int) []uintptr {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	out := make([]uintptr, n)
	copy(out, pcs[:n])
	return out
}

// stackOf returns the stack recorded by err itself, ignoring its causes.
func stackOf(err error) ([]uintptr, bool) {
	st, ok := err.(Stacker)
	if !ok {
		return nil, false
	}
	return st.Callers(), true
}
