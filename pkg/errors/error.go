// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Connection errors (100-199): Session init and login failures
//   - Data errors (200-299): Missing ticks, symbol metadata, cross rates
//   - Validation errors (300-399): Risk ceiling breaches, distance checks
//   - Venue order errors (400-499): Rejected submit/modify/cancel calls
//   - State errors (500-599): Duplicate and position conflicts
//   - Config errors (600-699): Malformed configuration or plan documents
//   - Audit errors (700-799): Audit store failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeRiskExceedsCeiling, "risk exceeds tier ceiling")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeTickDataUnavailable, "no tick for symbol %s", symbol)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeConnectionFailed, "failed to connect", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeOrderGone) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// VenueError represents a failure reported by the execution venue itself.
// It preserves the venue's native return code and message so that rejected
// submit/modify/cancel calls can be reproduced from logs.
type VenueError struct {
	Code      ErrorCode // Engine error code (ErrCodeOrderRejected, ...)
	RetCode   int       // Venue native return code
	Message   string    // Venue message, verbatim
	Operation string    // Operation that failed: submit, modify, cancel, modify_stops
	Ticket    int64     // Affected ticket, 0 for submissions
}

// NewVenueError creates a new VenueError.
func NewVenueError(code ErrorCode, operation string, ticket int64, retCode int, message string) *VenueError {
	return &VenueError{
		Code:      code,
		RetCode:   retCode,
		Message:   message,
		Operation: operation,
		Ticket:    ticket,
	}
}

// Error implements the error interface.
func (e *VenueError) Error() string {
	if e.Ticket != 0 {
		return fmt.Sprintf("[%d] venue rejected %s for ticket %d: retcode=%d %s", e.Code, e.Operation, e.Ticket, e.RetCode, e.Message)
	}

	return fmt.Sprintf("[%d] venue rejected %s: retcode=%d %s", e.Code, e.Operation, e.RetCode, e.Message)
}

// IsVenueError checks if an error is a VenueError.
// It uses errors.As to check the error chain.
func IsVenueError(err error) bool {
	var venueErr *VenueError

	return errors.As(err, &venueErr)
}
