// Package errors provides typed error handling with rich context for Axon.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Axon errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeDuplicateIdentity indicates a registration collided with an
	// existing canonical id.
	CodeDuplicateIdentity ErrorCode = "DUPLICATE_IDENTITY"

	// CodeSpecNotFound indicates no spec matched the given identifier.
	CodeSpecNotFound ErrorCode = "SPEC_NOT_FOUND"

	// CodeAmbiguousName indicates a name resolved to more than one spec.
	CodeAmbiguousName ErrorCode = "AMBIGUOUS_NAME"

	// CodePolicyLoad indicates a policy rule file failed to load.
	CodePolicyLoad ErrorCode = "POLICY_LOAD"

	// CodeRuntimeNotRegistered indicates no driver is bound to a runtime tag.
	CodeRuntimeNotRegistered ErrorCode = "RUNTIME_NOT_REGISTERED"

	// CodeDriverExecution indicates a driver invocation failed.
	CodeDriverExecution ErrorCode = "DRIVER_EXECUTION"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Cause   string                 `json:"cause,omitempty"`
		Context map[string]interface{} `json:"context,omitempty"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
		Context: e.Context,
	}
	if e.Err != nil {
		out.Cause = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Err:     cause,
	}
}

// Newf creates a new Error with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// AsError attempts to convert an error to an *Error.
// Returns the error unchanged if it is one, or wraps it as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the ErrorCode of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if ae, ok := err.(*Error); ok {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	ae, ok := err.(*Error)
	return ok && ae.Code == code
}
