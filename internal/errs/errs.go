// Package errs defines the error taxonomy shared by every strata component.
//
// Every failure surfaced to a caller is an *Error carrying a Code. Codes map
// onto the outcome classes callers care about:
//   - VALIDATION: malformed input, raised before any mutation
//   - NOT_FOUND: an unknown timeline, year, archetype, code or atomic change
//   - CONFLICT: two atomic changes write the same (archetype, component, field)
//   - INTEGRITY: materialized years disagree with the event log
//   - IO: filesystem failures, including permission errors on locked files
//
// Messages enumerate the offending keys so a single error reports every
// problem found rather than the first one.
package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Code categorizes an Error.
type Code string

const (
	// CodeValidation indicates malformed input.
	CodeValidation Code = "VALIDATION"

	// CodeNotFound indicates a referenced entity does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict indicates overlapping atomic changes.
	CodeConflict Code = "CONFLICT"

	// CodeIntegrity indicates disagreement between disk and log.
	CodeIntegrity Code = "INTEGRITY"

	// CodeIO indicates a filesystem failure.
	CodeIO Code = "IO"
)

// Error is the structured error returned by strata operations.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable summary.
	Message string

	// Keys lists the offending items (years, names, field paths).
	Keys []string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
// Keys are rendered one per line beneath the summary.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, k := range e.Keys {
		b.WriteString("\n  - ")
		b.WriteString(k)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a VALIDATION error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a CONFLICT error.
func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Integrity creates an INTEGRITY error.
func Integrity(format string, args ...any) *Error {
	return &Error{Code: CodeIntegrity, Message: fmt.Sprintf(format, args...)}
}

// IO wraps a filesystem error with the operation and path that failed.
// Permission errors keep their fs.ErrPermission identity through Unwrap.
func IO(op, path string, err error) *Error {
	msg := fmt.Sprintf("failed to %s %s", op, path)
	if errors.Is(err, fs.ErrPermission) {
		msg += " (permission denied; is the file open in another program?)"
	}
	return &Error{Code: CodeIO, Message: msg, Err: err}
}

// WithKeys attaches offending keys and returns the same error.
func (e *Error) WithKeys(keys ...string) *Error {
	e.Keys = append(e.Keys, keys...)
	return e
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a VALIDATION error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsIntegrity reports whether err is an INTEGRITY error.
func IsIntegrity(err error) bool { return CodeOf(err) == CodeIntegrity }

// IsIO reports whether err is an IO error.
func IsIO(err error) bool { return CodeOf(err) == CodeIO }

// Message returns the summary of the first *Error in err's chain without
// its code or keys, or err.Error() for other errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
