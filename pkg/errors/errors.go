package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeUpstreamUnavailable indicates an upstream data source could not
	// be reached or timed out; transient, retried on the next TTL-expiry cycle
	ErrorTypeUpstreamUnavailable ErrorType = "UPSTREAM_UNAVAILABLE"

	// ErrorTypeUpstreamMalformed indicates an upstream data source returned a
	// response that could not be parsed; treated as unavailable and logged
	// for data-quality monitoring
	ErrorTypeUpstreamMalformed ErrorType = "UPSTREAM_MALFORMED"

	// ErrorTypeStaleBeyondCeiling indicates a cache entry exists but is older
	// than the hard staleness ceiling and must not be served
	ErrorTypeStaleBeyondCeiling ErrorType = "STALE_BEYOND_CEILING"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewUpstreamUnavailableError creates an error for an unreachable upstream source
func NewUpstreamUnavailableError(source string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUpstreamUnavailable,
		Message: fmt.Sprintf("upstream source %s unavailable", source),
		Err:     err,
	}
}

// NewUpstreamMalformedError creates an error for an unparseable upstream response
func NewUpstreamMalformedError(source string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUpstreamMalformed,
		Message: fmt.Sprintf("upstream source %s returned malformed data", source),
		Err:     err,
	}
}

// NewStaleBeyondCeilingError creates an error for cache data past the staleness ceiling
func NewStaleBeyondCeilingError(dataType, key string) *AppError {
	return &AppError{
		Type:    ErrorTypeStaleBeyondCeiling,
		Message: fmt.Sprintf("cached %s data for %q is beyond the staleness ceiling", dataType, key),
	}
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsUpstreamFailure reports whether err stems from an upstream source,
// either unreachable or malformed
func IsUpstreamFailure(err error) bool {
	return IsType(err, ErrorTypeUpstreamUnavailable) || IsType(err, ErrorTypeUpstreamMalformed)
}
