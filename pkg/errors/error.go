// Package errors provides structured error handling with typed error codes.
//
// Codes are grouped by concern: validation/configuration (100s), data
// (200s), indicators (300s), strategies (400s), trading (500s), and
// backtest runs (600s).
//
// Usage:
//
//	err := errors.New(errors.ErrCodeInvalidOrder, "limit price missing")
//	err := errors.Newf(errors.ErrCodeMalformedBar, "bad bar at %s", ts)
//	err := errors.Wrap(errors.ErrCodeStrategyRuntime, "on_bar failed", cause)
//	if errors.HasCode(err, errors.ErrCodeMalformedBar) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error is a structured error carrying a code, a message, and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a new Error carrying the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf wraps cause with a new Error carrying the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from err's chain.
// Returns ErrCodeUnknown if no *Error is present.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode reports whether err's chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
