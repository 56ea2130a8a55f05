// Package kerrors implements the error taxonomy from the error handling
// design: a typed Error{Kind, Message, Cause} checked with errors.As, the
// pattern in the teacher's pkg/config/errors.go and pkg/services/errors.go.
package kerrors

import (
	"errors"
	"fmt"
)

// Kind tags the disposition of an Error per the error handling design.
type Kind string

const (
	// InvalidRecipe: recipe JSON could not be deserialized or violated
	// domain invariants. Fatal to the study being constructed.
	InvalidRecipe Kind = "InvalidRecipe"

	// UnevaluableParams: problem refused these params. Counted, skipped,
	// study continues until the per-study ceiling.
	UnevaluableParams Kind = "UnevaluableParams"

	// IoError: subprocess pipe read/write or filesystem operation failed.
	// Fatal to the factory; subprocess killed.
	IoError Kind = "IoError"

	// ProtocolError: unexpected message type or malformed JSON on the
	// channel. Fatal to the factory.
	ProtocolError Kind = "ProtocolError"

	// EvaluationFailed: child returned ERROR_REPLY for an evaluate call.
	// Surfaces to the runner, which aborts the study.
	EvaluationFailed Kind = "EvaluationFailed"

	// CreationFailed: a recipe's own create_factory call failed.
	CreationFailed Kind = "CreationFailed"

	// Bug: internal invariant violated. Should never occur.
	Bug Kind = "Bug"
)

// Error is the taxonomy's value type: every fallible core operation returns
// either a value or an *Error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf builds an *Error wrapping cause with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is (or wraps) an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
