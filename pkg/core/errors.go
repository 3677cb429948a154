package core

import (
	"errors"
	"fmt"
)

// Error represents an application error surfaced to callers and API clients.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	// Cause is the underlying error. It is never serialized.
	Cause error `json:"-"`
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
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrProvider       ErrorType = "provider_error"

	// ErrConfiguration reports missing or invalid process configuration,
	// such as an absent Gemini API key. It is raised on first use.
	ErrConfiguration ErrorType = "configuration_error"

	// ErrDevice reports that a local audio device could not be acquired,
	// typically because microphone permission was denied.
	ErrDevice ErrorType = "device_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *Error {
	return &Error{
		Type:    ErrRateLimit,
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

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string) *Error {
	return &Error{
		Type:    ErrConfiguration,
		Message: message,
	}
}

// NewDeviceError wraps a device acquisition failure.
func NewDeviceError(message string, cause error) *Error {
	return &Error{
		Type:    ErrDevice,
		Message: message,
		Cause:   cause,
	}
}

// NewProviderError creates a remote-provider error.
func NewProviderError(provider string, underlying error) *Error {
	return &Error{
		Type:    ErrProvider,
		Message: fmt.Sprintf("%s: %v", provider, underlying),
		Cause:   underlying,
	}
}

// IsType reports whether err is (or wraps) a *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var coreErr *Error
	return errors.As(err, &coreErr) && coreErr != nil && coreErr.Type == t
}
