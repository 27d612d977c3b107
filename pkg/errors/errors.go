// Package errors provides structured errors with stable codes so tests
// and callers can match on the category of a failure instead of its
// message text.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Instance errors
	ErrNotADirectory   ErrorCode = "NOT_A_DIRECTORY"
	ErrInstanceInfo    ErrorCode = "INSTANCE_INFO"
	ErrInstanceExists  ErrorCode = "INSTANCE_EXISTS"
	ErrInstanceGone    ErrorCode = "INSTANCE_GONE"
	ErrInvalidName     ErrorCode = "INVALID_NAME"
	ErrRootUnavailable ErrorCode = "ROOT_UNAVAILABLE"

	// Content install errors
	ErrWrongHash     ErrorCode = "WRONG_HASH"
	ErrWrongFilesize ErrorCode = "WRONG_FILESIZE"
	ErrInvalidHash   ErrorCode = "INVALID_HASH"
	ErrNotOK         ErrorCode = "NOT_OK"
	ErrInvalidPath   ErrorCode = "INVALID_PATH"
	ErrIO            ErrorCode = "IO_ERROR"

	// Filesystem watch errors
	ErrWatchSetup ErrorCode = "WATCH_SETUP"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
)

// LauncherError represents a structured error with code and details
type LauncherError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *LauncherError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *LauncherError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *LauncherError) Is(target error) bool {
	var targetErr *LauncherError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// WithDetail adds a detail field to the error and returns it for chaining
func (e *LauncherError) WithDetail(key string, value interface{}) *LauncherError {
	e.Details[key] = value
	return e
}

// New creates a new LauncherError with the given code and message
func New(code ErrorCode, message string) *LauncherError {
	return &LauncherError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new LauncherError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *LauncherError {
	return &LauncherError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a LauncherError
func Wrap(err error, code ErrorCode, message string) *LauncherError {
	if err == nil {
		return nil
	}
	return &LauncherError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *LauncherError {
	if err == nil {
		return nil
	}
	return &LauncherError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var launcherErr *LauncherError
	if errors.As(err, &launcherErr) {
		return launcherErr.Code == code
	}
	return false
}

// GetCode extracts the code from an error chain, ErrUnknown if none.
func GetCode(err error) ErrorCode {
	var launcherErr *LauncherError
	if errors.As(err, &launcherErr) {
		return launcherErr.Code
	}
	return ErrUnknown
}
