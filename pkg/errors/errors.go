package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes used across the messaging core.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUploadExhausted  = "UPLOAD_EXHAUSTED"
	CodeMessageNotFound  = "MESSAGE_NOT_FOUND"
	CodeStreamTransport  = "STREAM_TRANSPORT"
	CodeMetadataWrite    = "METADATA_WRITE"
	CodeSummaryStale     = "SUMMARY_STALE"
	CodeRateLimited      = "RATE_LIMITED"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
	cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause records the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewValidationError reports a per-file validation failure. It is never
// fatal to the batch it belongs to.
func NewValidationError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeValidationFailed, message)
}

// NewUploadExhaustedError reports that every provider in the chain failed
// for one attachment. The last provider's error is recorded as the cause.
func NewUploadExhaustedError(message string, last error) *AppError {
	return NewError(http.StatusBadGateway, CodeUploadExhausted, message).WithCause(last)
}

// NewMessageNotFoundError reports a reference that no resolution strategy
// could match.
func NewMessageNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeMessageNotFound, message)
}

// NewStreamTransportError reports a lost feed subscription. The stream
// enters its errored state and requires an explicit re-subscribe.
func NewStreamTransportError(message string, cause error) *AppError {
	return NewError(http.StatusServiceUnavailable, CodeStreamTransport, message).WithCause(cause)
}

// NewMetadataWriteError reports a failed registry write. Callers swallow
// it after logging; it must never surface past the registry.
func NewMetadataWriteError(message string, cause error) *AppError {
	return NewError(http.StatusInternalServerError, CodeMetadataWrite, message).WithCause(cause)
}

// NewSummaryStaleError reports that the message was written but the
// conversation digest update failed.
func NewSummaryStaleError(message string, cause error) *AppError {
	return NewError(http.StatusInternalServerError, CodeSummaryStale, message).WithCause(cause)
}

// NewRateLimitedError reports that a sender exceeded their send budget.
func NewRateLimitedError(message string) *AppError {
	return NewError(http.StatusTooManyRequests, CodeRateLimited, message)
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// Is checks if the target error is of type AppError with the same code
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == target.Code
}
