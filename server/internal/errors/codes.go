package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for chat operations.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeForbidden indicates the caller does not own the target resource.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeNotFound indicates the target id is absent.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeSessionBusy indicates an overlapping stream submission.
	ErrCodeSessionBusy ErrorCode = "SESSION_BUSY"
	// ErrCodeOutOfRange indicates an index outside the message sequence.
	ErrCodeOutOfRange ErrorCode = "OUT_OF_RANGE"
	// ErrCodeStoreUnavailable indicates the record or blob store failed.
	// Recoverable: the caller rolls back optimistic state and may retry.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodeGenerationFailed indicates the model provider errored mid-stream.
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
)

// ServiceError represents a structured error for chat operations.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Convenience constructors for common error types.

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeUnauthorized, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeForbidden, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeNotFound, Message: msg}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeInvalidArgument, Message: msg}
}

// SessionBusy creates a session busy error.
func SessionBusy(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeSessionBusy, Message: msg}
}

// OutOfRange creates an out of range error.
func OutOfRange(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeOutOfRange, Message: msg}
}

// StoreUnavailable creates a store unavailable error.
func StoreUnavailable(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeStoreUnavailable, Message: msg, Cause: cause}
}

// GenerationFailed creates a generation failed error.
func GenerationFailed(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeGenerationFailed, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if svcErr, ok := err.(*ServiceError); ok {
		return svcErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a ServiceError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if svcErr, ok := err.(*ServiceError); ok {
		return svcErr.Code
	}
	return defaultCode
}
