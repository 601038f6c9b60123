// Package apperrors defines the error kinds surfaced by the service layer and their HTTP
// status mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind classifies a domain error.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindNotAuthenticated   Kind = "not_authenticated"
	KindMissingToken       Kind = "missing_token"
	KindInvalidToken       Kind = "invalid_token"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindConflict           Kind = "conflict"
	KindNotFound           Kind = "not_found"
	// KindAccountNotFound is raised when an authenticated account no longer resolves. It
	// carries rollback obligations inside the story linkage workflow.
	KindAccountNotFound Kind = "account_not_found"
	KindPersistence     Kind = "persistence_error"
)

const maxStackDepth = 32

// Error is a domain error with a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	stack   []uintptr
}

// New constructs an Error and records the call stack of its origin.
func New(kind Kind, message string) *Error {
	return newError(kind, message, nil)
}

// Wrap constructs an Error around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return newError(kind, message, cause)
}

// Newf formats the message.
func Newf(kind Kind, format string, args ...any) *Error {
	return newError(kind, fmt.Sprintf(format, args...), nil)
}

func newError(kind Kind, message string, cause error) *Error {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Message: message, Err: cause, stack: pcs[:n]}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so sentinel-style comparisons work:
// errors.Is(err, apperrors.New(apperrors.KindNotFound, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// Stack renders the recorded call stack, one frame per line.
func (e *Error) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(e.stack)
	var builder strings.Builder
	builder.WriteString(e.Error())
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&builder, "\n    at %s (%s:%d)", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return builder.String()
}

// KindOf returns the kind of the first *Error in the chain, or an empty Kind.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// HasKind reports whether err carries the given kind.
func HasKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotAuthenticated, KindMissingToken, KindInvalidToken, KindInvalidCredentials, KindAccountNotFound:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf returns the caller-facing message of the first *Error in the chain, or the
// plain error text.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
