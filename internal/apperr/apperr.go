// Package apperr defines the error kinds the handler distinguishes and maps
// each of them to an HTTP status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	// Structural errors are malformed events: missing Records, bad base64, bad JSON.
	Structural Kind = iota + 1
	// Validation errors are caller mistakes: unknown end point or model, missing fields.
	Validation
	// Upstream errors are failures reported by the remote API or the network.
	Upstream
	// Unimplemented marks end points that are accepted but not supported yet.
	Unimplemented
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Validation:
		return "validation"
	case Upstream:
		return "upstream"
	case Unimplemented:
		return "unimplemented"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status for the kind.
func (k Kind) StatusCode() int {
	if k == Validation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error is a classified error. The call stack is captured when it is created.
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	stack []uintptr
}

// New creates a classified error with a message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), stack: callers()}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err, stack: callers()}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost classified error in the chain.
// Unclassified errors are reported as Upstream.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Upstream
}

// StatusCode maps any error to an HTTP status code.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return KindOf(err).StatusCode()
}

// Trace renders the error chain followed by the stack captured at the
// innermost classified error.
func Trace(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s error: %s\n", KindOf(err), err.Error())

	var stack []uintptr
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "  %T: %s\n", e, e.Error())
		if ae, ok := e.(*Error); ok && len(ae.stack) > 0 {
			stack = ae.stack
		}
	}

	if len(stack) > 0 {
		b.WriteString("stack:\n")
		frames := runtime.CallersFrames(stack)
		for {
			f, more := frames.Next()
			fmt.Fprintf(&b, "  %s\n      %s:%d\n", f.Function, f.File, f.Line)
			if !more {
				break
			}
		}
	}

	return b.String()
}

func callers() []uintptr {
	pcs := make([]uintptr, 32)
	// skip runtime.Callers, callers, and New/Wrap
	n := runtime.Callers(3, pcs)
	return pcs[:n]
}
