package core

import (
	"errors"
	"fmt"
)

// Error represents a session or API error.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Status    int       `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// Session errors raised client-side by the agent manager.
	ErrValidation     ErrorType = "validation_error"
	ErrMode           ErrorType = "mode_error"
	ErrNotInitialized ErrorType = "not_initialized_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrConnection     ErrorType = "connection_error"
	ErrInvalidPayload ErrorType = "invalid_payload_error"

	// API errors decoded from REST responses.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
)

// NewValidationError creates a validation error for the named parameter.
func NewValidationError(message, param string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
		Param:   param,
	}
}

// NewModeError creates an error for an operation rejected by the current chat mode.
func NewModeError(message string) *Error {
	return &Error{
		Type:    ErrMode,
		Message: message,
	}
}

// NewNotInitializedError creates an error for a missing chat or media session.
func NewNotInitializedError(message string) *Error {
	return &Error{
		Type:    ErrNotInitialized,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewConnectionError creates a connection error wrapping the cause.
func NewConnectionError(message string, cause error) *Error {
	return &Error{
		Type:    ErrConnection,
		Message: message,
		cause:   cause,
	}
}

// NewInvalidPayloadError creates an invalid payload error.
func NewInvalidPayloadError(message string) *Error {
	return &Error{
		Type:    ErrInvalidPayload,
		Message: message,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// IsType reports whether err is, or wraps, a *Error of the given type.
func IsType(err error, typ ErrorType) bool {
	var coreErr *Error
	if !errors.As(err, &coreErr) {
		return false
	}
	return coreErr.Type == typ
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrAPI, ErrConnection:
		return true
	default:
		return false
	}
}
