// internal/driver/errors.go
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// ErrorKind classifies driver failures so retry and recovery logic can branch
// on a value instead of on concrete error types.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindStale: the element handle no longer refers to a node in the document.
	KindStale
	// KindNoSuchElement: the locator matched nothing.
	KindNoSuchElement
	// KindTimeout: a deadline passed.
	KindTimeout
	// KindNotInteractable: the element exists but cannot receive input.
	KindNotInteractable
	// KindScript: script evaluation threw.
	KindScript
	// KindNoAlert: no JavaScript dialog was open.
	KindNoAlert
	// KindDriver: any other failure reported by the browser binding.
	KindDriver
)

func (k ErrorKind) String() string {
	switch k {
	case KindStale:
		return "stale element reference"
	case KindNoSuchElement:
		return "no such element"
	case KindTimeout:
		return "timeout"
	case KindNotInteractable:
		return "element not interactable"
	case KindScript:
		return "script error"
	case KindNoAlert:
		return "no such alert"
	case KindDriver:
		return "driver error"
	default:
		return "unknown"
	}
}

// kinded is implemented by every error that carries an ErrorKind,
// including timeout errors raised outside this package.
type kinded interface {
	Kind() ErrorKind
}

// Stack is a captured call stack.
type Stack []uintptr

// CaptureStack records the caller's stack, skipping skip frames above the caller.
func CaptureStack(skip int) Stack {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	return Stack(pcs[:n])
}

// Frames resolves the stack into frames.
func (s Stack) Frames() []runtime.Frame {
	if len(s) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(s)
	var out []runtime.Frame
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			break
		}
	}
	return out
}

// Error is the error type returned by Driver implementations.
type Error struct {
	kind   ErrorKind
	Op     string
	Target string
	Err    error
	stack  Stack
}

// NewError builds a driver error and captures the caller's stack.
func NewError(kind ErrorKind, op, target string, err error) *Error {
	return &Error{kind: kind, Op: op, Target: target, Err: err, stack: CaptureStack(1)}
}

func (e *Error) Kind() ErrorKind { return e.kind }

func (e *Error) Error() string {
	msg := e.Op
	if e.Target != "" {
		msg += " " + e.Target
	}
	msg = fmt.Sprintf("%s: %s", msg, e.kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// StackFrames returns the frames captured when the error was created.
func (e *Error) StackFrames() []runtime.Frame { return e.stack.Frames() }

// KindOf reports the kind of err. Context deadline errors count as timeouts.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// IsKind reports whether err is of any of the given kinds.
func IsKind(err error, kinds ...ErrorKind) bool {
	if err == nil {
		return false
	}
	got := KindOf(err)
	for _, k := range kinds {
		if got == k {
			return true
		}
	}
	return false
}

// IsDriverError reports whether err came from the browser binding at all,
// as opposed to a context cancellation or a plain Go error.
func IsDriverError(err error) bool {
	return KindOf(err) != KindUnknown
}

// IsTransient reports whether err is a stale reference or a missing element,
// the two kinds that waits treat as "not yet" rather than as failures.
func IsTransient(err error) bool {
	return IsKind(err, KindStale, KindNoSuchElement)
}
