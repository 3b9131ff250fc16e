// Package apperrors defines the error taxonomy surfaced by callable operations.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind categorizes errors returned to callers.
type Kind int

const (
	// Internal is any unexpected failure. Its message is never shown to callers.
	Internal Kind = iota
	// Unauthenticated indicates the request carried no caller identity.
	Unauthenticated
	// PermissionDenied indicates the caller lacks the required role.
	PermissionDenied
	// NotFound indicates a referenced document does not exist.
	NotFound
	// InvalidArgument indicates request validation failed.
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case NotFound:
		return "NOT_FOUND"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return "INTERNAL"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NewUnauthenticated() *Error {
	return New(Unauthenticated, "Authentication required")
}

func NewPermissionDenied(message string) *Error {
	return New(PermissionDenied, message)
}

func NewNotFound(format string, args ...interface{}) *Error {
	return Newf(NotFound, format, args...)
}

func NewInvalidArgument(format string, args ...interface{}) *Error {
	return Newf(InvalidArgument, format, args...)
}

func NewInternal(message string, cause error) *Error {
	return Wrap(Internal, message, cause)
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
