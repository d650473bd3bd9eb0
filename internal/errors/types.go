package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type
type ErrorCode string

const (
	// Command input errors
	ErrCodeValidation ErrorCode = "VALIDATION"

	// Permission errors
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodePermissionLookup ErrorCode = "PERMISSION_LOOKUP_FAILED"

	// Persistence errors
	ErrCodeStore         ErrorCode = "STORE_ERROR"
	ErrCodeCorruptRecord ErrorCode = "CORRUPT_RECORD"

	// Bridge lifecycle preconditions
	ErrCodeAlreadyBridged ErrorCode = "ALREADY_BRIDGED"
	ErrCodeNotBridged     ErrorCode = "NOT_BRIDGED"
	ErrCodeInitializing   ErrorCode = "INITIALIZING"
	ErrCodeWrongPassword  ErrorCode = "WRONG_PASSWORD"

	// NetChat call failures
	ErrCodeServerError  ErrorCode = "SERVER_ERROR"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeTransport    ErrorCode = "TRANSPORT"
	ErrCodeDeserialize  ErrorCode = "DESERIALIZE_ERROR"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured bridge error. UserMessage, when set, is what
// the command dispatcher sends back into the Matrix room; Message and
// Cause are for the logs.
type AppError struct {
	Code        ErrorCode
	Message     string
	Cause       error
	Retryable   bool
	UserMessage string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithUserMessage sets the message surfaced to the invoking room.
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapRetryable wraps an error and marks it as retryable
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetUserMessage extracts a user-facing message from an error
func GetUserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	return "An internal error occurred"
}
