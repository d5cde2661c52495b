// internal/core/errors.go
package core

import (
	"fmt"
	"strings"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no market data available"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}

	// Simulation errors
	ErrNoTrades      = &Error{Code: "NO_TRADES", Message: "simulation produced no trades"}
	ErrSignalFailed  = &Error{Code: "SIGNAL_FAILED", Message: "signal generation failed"}
	ErrBatchAborted  = &Error{Code: "BATCH_ABORTED", Message: "batch aborted before completion"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Archive errors
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "result archiving failed"}
)

// ValidationError collects every configuration violation found during a
// pre-run validation pass, so the caller sees all problems at once instead
// of fixing them one at a time.
type ValidationError struct {
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %d violation(s): %s",
		ErrConfigInvalid.Code, len(e.Violations), strings.Join(e.Violations, "; "))
}

// Is matches the ErrConfigInvalid sentinel.
func (e *ValidationError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == ErrConfigInvalid.Code
	}
	return false
}

// Addf records one violation.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

// Err returns the error itself, or nil if no violations were recorded.
func (e *ValidationError) Err() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
