// Package errors provides structured error types for flowlane.
//
// Errors carry a machine-readable [Code] so the CLI and the HTTP viewer API
// can map failures to exit messages and status codes without string matching.
//
// # Error Codes
//
//   - INVALID_*: input validation failures (graphs, options, request bodies)
//   - *_NOT_FOUND: unknown sessions, stages or files
//   - MISSING_DEPENDENCY: a layout precondition failure
//   - CACHE_*, INTERNAL_*: backend and unexpected failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidOptions, "px_per_ms must be positive, got %v", v)
//	if errors.Is(err, errors.ErrCodeInvalidOptions) {
//	    // reject the request
//	}
//
//	err := errors.Wrap(errors.ErrCodeInvalidGraph, cause, "read graph %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidGraph   Code = "INVALID_GRAPH"
	ErrCodeInvalidOptions Code = "INVALID_OPTIONS"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeInvalidCache   Code = "INVALID_CACHE"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeStageNotFound   Code = "STAGE_NOT_FOUND"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Layout precondition failures
	ErrCodeMissingDependency Code = "MISSING_DEPENDENCY"

	// Backend errors
	ErrCodeCacheUnavailable Code = "CACHE_UNAVAILABLE"
	ErrCodeTimeout          Code = "TIMEOUT"

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

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any *Error in err's chain has the given code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix for *Error values,
// and err.Error() otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsUserError reports whether err was caused by bad input rather than by a
// backend or internal failure.
func IsUserError(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidGraph, ErrCodeInvalidOptions,
		ErrCodeInvalidFormat, ErrCodeInvalidPath, ErrCodeInvalidCache:
		return true
	}
	return false
}
