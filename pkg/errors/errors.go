// Package errors provides structured error types for tilepaper.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the engine and the control API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Configuration and input validation failures
//   - NO_*: Empty inputs that make a cycle a no-op
//   - *_FAILED / *_TIMEOUT: Runtime failures that are logged and survived
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidFolder, "source folder %q does not exist", dir)
//	if errors.Is(err, errors.ErrCodeInvalidFolder) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDecode, origErr, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Startup validation errors
	ErrCodeInvalidFolder     Code = "INVALID_FOLDER"
	ErrCodeInvalidDimensions Code = "INVALID_DIMENSIONS"
	ErrCodeInvalidInterval   Code = "INVALID_INTERVAL"
	ErrCodeInvalidConfig     Code = "INVALID_CONFIG"

	// Input errors that turn a cycle into a no-op
	ErrCodeNoImages Code = "NO_IMAGES"

	// Runtime errors, logged and survived
	ErrCodeDecode      Code = "DECODE_FAILED"
	ErrCodeLockTimeout Code = "LOCK_TIMEOUT"
	ErrCodeApply       Code = "APPLY_FAILED"
	ErrCodeDisplay     Code = "DISPLAY_FAILED"

	// Lifecycle errors
	ErrCodeClosed Code = "CLOSED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsStartup reports whether err is a validation failure that must prevent
// the engine from starting. Every other code is survivable at runtime.
func IsStartup(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidFolder, ErrCodeInvalidDimensions, ErrCodeInvalidInterval, ErrCodeInvalidConfig:
		return true
	}
	return false
}
