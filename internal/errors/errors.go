package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of session error.
type ErrorCode string

const (
	// ErrCodeValidation indicates invalid input data rejected before any network call.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInvalidCredentials indicates the authority rejected a login or registration.
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"
	// ErrCodeUnauthorized indicates an expired or invalid bearer token.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeTransport indicates the authority could not be reached.
	ErrCodeTransport ErrorCode = "transport"
	// ErrCodeMalformed indicates an unreadable response or persisted record.
	ErrCodeMalformed ErrorCode = "malformed"
	// ErrCodeInFlight indicates another authentication attempt already holds the slot.
	ErrCodeInFlight ErrorCode = "in_flight"
	// ErrCodeSuperseded indicates a response arrived after its attempt stopped being relevant.
	ErrCodeSuperseded ErrorCode = "superseded"
	// ErrCodeStorage indicates the persisted session record could not be written or cleared.
	ErrCodeStorage ErrorCode = "storage"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message, safe to show next to a form
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// InFlight creates the error returned when an authentication attempt is already running.
func InFlight() *AppError {
	return New(ErrCodeInFlight, "an authentication request is already in progress")
}

// Superseded creates the error returned when a late response is discarded.
func Superseded(op string) *AppError {
	return &AppError{Code: ErrCodeSuperseded, Message: op + " superseded by a newer session change"}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return New(ErrCodeInternal, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// HasCode reports whether the first AppError in err's chain has one of codes.
func HasCode(err error, codes ...ErrorCode) bool {
	got := GetCode(err)
	if got == "" {
		return false
	}
	for _, c := range codes {
		if c == got {
			return true
		}
	}
	return false
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return HasCode(err, ErrCodeValidation) }

// IsInvalidCredentials checks if an error is an InvalidCredentials error.
func IsInvalidCredentials(err error) bool { return HasCode(err, ErrCodeInvalidCredentials) }

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool { return HasCode(err, ErrCodeUnauthorized) }

// IsTransport checks if an error is a Transport error.
func IsTransport(err error) bool { return HasCode(err, ErrCodeTransport) }

// IsMalformed checks if an error is a Malformed error.
func IsMalformed(err error) bool { return HasCode(err, ErrCodeMalformed) }

// IsInFlight checks if an error is an InFlight error.
func IsInFlight(err error) bool { return HasCode(err, ErrCodeInFlight) }

// IsSuperseded checks if an error is a Superseded error.
func IsSuperseded(err error) bool { return HasCode(err, ErrCodeSuperseded) }

// IsStorage checks if an error is a Storage error.
func IsStorage(err error) bool { return HasCode(err, ErrCodeStorage) }

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool { return HasCode(err, ErrCodeCanceled) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// UserMessage returns the message to surface to the principal. Messages of
// AppErrors are returned verbatim; anything else gets a generic fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "something went wrong, please try again"
}
