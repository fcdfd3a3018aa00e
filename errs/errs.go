// Package errs defines the tagged error taxonomy shared by every node of the
// workflow graph, so callers can distinguish retryable validation failures
// from terminal infrastructure failures using errors.Is/errors.As.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error for routing and user-visibility decisions.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindSQLGeneration Kind = "sql_generation_error"
	KindExecution     Kind = "execution_error"
	KindTimeout       Kind = "timeout"
	KindSchema        Kind = "schema_error"
	KindRecursion     Kind = "recursion_error"
	KindBackpressure  Kind = "backpressure"
	KindCanceled      Kind = "canceled"
)

// Error is a tagged, wrappable error carrying a Kind and structured Details.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is supports errors.Is(err, errs.KindValidation) style checks via a sentinel wrapper, see Is().
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// New creates a new tagged error of the given kind.
func New(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Wrap attaches a Kind and message to an underlying cause, preserving it for errors.As/errors.Unwrap.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.WithStack(cause)}
}

// Of reports the Kind of err if it (or something it wraps) is an *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is a tagged Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}

// Sentinel values usable with errors.Is(err, errs.Validation) when no cause/details are needed.
var (
	Validation    = &Error{Kind: KindValidation}
	SQLGeneration = &Error{Kind: KindSQLGeneration}
	Execution     = &Error{Kind: KindExecution}
	Timeout       = &Error{Kind: KindTimeout}
	Schema        = &Error{Kind: KindSchema}
	Recursion     = &Error{Kind: KindRecursion}
	Backpressure  = &Error{Kind: KindBackpressure}
	Canceled      = &Error{Kind: KindCanceled}
)
