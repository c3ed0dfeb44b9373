package errors

import (
	stderrors "errors"
	"net/http"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Caller-safe message
	Metadata map[string]string // Additional context such as the offending field
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Field creates a validation error naming the offending input field.
func Field(code Code, field string, message string) *Error {
	return WithMetadata(code, message, map[string]string{"Field": field})
}

// Storage wraps a persistence failure. The cause is kept for logs only.
func Storage(cause error) *Error {
	return Wrap(CodeStorageFailure, "storage failure", cause)
}

// CodeOf returns the code of the first domain error in the chain.
func CodeOf(err error) Code {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// KindOf returns the failure class of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	return CodeOf(err).Kind()
}

// HTTPStatus maps err to an HTTP status code. Errors that are not domain
// errors map to 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return KindOf(err).HTTPStatus()
}

// PublicMessage returns the message safe to show a caller.
func PublicMessage(err error) string {
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return "internal error"
	}
	if appErr.Code.Kind() == KindStorageFailure {
		return "storage failure"
	}
	return appErr.Message
}
