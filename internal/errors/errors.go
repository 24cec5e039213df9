// Package errors provides error code definitions for the agrisync core.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code surfaced to callers and logs.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Storage errors
	ErrStorage     ErrorCode = "STORAGE_ERROR"
	ErrStorageFull ErrorCode = "STORAGE_FULL"
	ErrMigration   ErrorCode = "MIGRATION_FAILED"

	// Delivery errors
	ErrTransientDelivery  ErrorCode = "TRANSIENT_DELIVERY"
	ErrDeliveryConflict   ErrorCode = "DELIVERY_CONFLICT"
	ErrPermanentRejection ErrorCode = "PERMANENT_REJECTION"
	ErrDeliveryTimeout    ErrorCode = "DELIVERY_TIMEOUT"
	ErrNoDeliverer        ErrorCode = "NO_DELIVERER"

	// Cache errors
	ErrCacheMiss      ErrorCode = "CACHE_MISS"
	ErrNetworkFailure ErrorCode = "NETWORK_FAILURE"

	// Conflict resolution errors
	ErrConflictResolved ErrorCode = "CONFLICT_ALREADY_RESOLVED"
	ErrMergeUnsupported ErrorCode = "MERGE_UNSUPPORTED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrInternal when err carries none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsTransient reports whether err is a retryable delivery failure.
// Timeouts are transient by definition, never permanent.
func IsTransient(err error) bool {
	code := CodeOf(err)
	return code == ErrTransientDelivery || code == ErrDeliveryTimeout || code == ErrNetworkFailure
}

// IsPermanent reports whether err is a non-retryable delivery rejection.
func IsPermanent(err error) bool {
	return Is(err, ErrPermanentRejection)
}
