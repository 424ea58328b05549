package errors

import (
	"errors"
	"fmt"
)

// Error is a domain error carrying a machine-readable code.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Forbidden creates a guard denial error for the given privilege code.
func Forbidden(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NotFound creates a lookup failure error.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// Logic creates an internal invariant violation error. These are programmer
// errors and must abort the operation without committing a partial event.
func Logic(message string) *Error {
	return &Error{Code: CodeLogicViolation, Message: message}
}

// Evaluator wraps an unexpected failure from the evaluator collaborator.
func Evaluator(message string, cause error) *Error {
	return &Error{Code: CodeEvaluatorFailure, Message: message, cause: cause}
}

// WithMetadata attaches metadata to the error and returns it.
func (e *Error) WithMetadata(metadata map[string]string) *Error {
	e.Metadata = metadata
	return e
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsForbidden reports whether the error is a guard denial.
func IsForbidden(err error) bool {
	return IsForbiddenCode(GetCode(err))
}

// IsNotFound reports whether the error is a lookup failure.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}
