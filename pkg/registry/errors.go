package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried by RegistryError.
const (
	CodeConfiguration        = "CONFIGURATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	CodeHandler              = "HANDLER_ERROR"
)

// defaultErrorMessage is sent when an error has no message of its own.
const defaultErrorMessage = "request failed"

// RegistryError is a structured error from registration, dispatch or a handler.
type RegistryError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    any    `json:"details,omitempty"`
}

func (e *RegistryError) Error() string {
	return e.Code + ": " + e.Message
}

// NewConfigurationError reports a handler that cannot be registered.
func NewConfigurationError(format string, args ...any) *RegistryError {
	return &RegistryError{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a resource key with no registered handler.
func NewNotFoundError(key string) *RegistryError {
	return &RegistryError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("Handler not found: %q", key),
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{"key": key},
	}
}

// NewUnsupportedOperationError reports an operation outside the CRUD enumeration.
func NewUnsupportedOperationError(op string) *RegistryError {
	return &RegistryError{
		Code:       CodeUnsupportedOperation,
		Message:    fmt.Sprintf("Unsupported operation: %q", op),
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"operation": op},
	}
}

// NewHandlerError is the error handlers settle a completion with. A zero status maps to 400
// at the HTTP boundary.
func NewHandlerError(statusCode int, message string) *RegistryError {
	return &RegistryError{Code: CodeHandler, Message: message, StatusCode: statusCode}
}

// IsCode reports whether err is a RegistryError with the given code.
func IsCode(err error, code string) bool {
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		return regErr.Code == code
	}
	return false
}

// StatusCode returns the status carried by err, or def when it carries none.
func StatusCode(err error, def int) int {
	var regErr *RegistryError
	if errors.As(err, &regErr) && regErr.StatusCode > 0 {
		return regErr.StatusCode
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		return sc.StatusCode()
	}
	return def
}

// Message returns the client-facing message of err.
func Message(err error) string {
	if err == nil {
		return defaultErrorMessage
	}
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		if regErr.Message == "" {
			return defaultErrorMessage
		}
		return regErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return defaultErrorMessage
}
