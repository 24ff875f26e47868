package domain

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents categorized error types.
// These codes are stable and can be used for programmatic error handling.
type ErrorCode string

const (
	ErrCodeConfigMissing          ErrorCode = "config_missing"
	ErrCodeEntityNotFound         ErrorCode = "entity_not_found"
	ErrCodeAuthFailed             ErrorCode = "auth_failed"
	ErrCodeSessionInvalid         ErrorCode = "session_invalid"
	ErrCodeServiceError           ErrorCode = "service_error"
	ErrCodeBadRequest             ErrorCode = "bad_request"
	ErrCodeMalformedMessage       ErrorCode = "malformed_message"
	ErrCodeSignatureInvalid       ErrorCode = "signature_invalid"
	ErrCodeUntrustedIssuer        ErrorCode = "untrusted_issuer"
	ErrCodeTimestampOutOfRange    ErrorCode = "timestamp_out_of_range"
	ErrCodeAudienceMismatch       ErrorCode = "audience_mismatch"
	ErrCodeReplayDetected         ErrorCode = "replay_detected"
	ErrCodeUnknownRequestID       ErrorCode = "unknown_request_id"
	ErrCodeSessionExpired         ErrorCode = "session_expired"
	ErrCodeSessionBindingMismatch ErrorCode = "session_binding_mismatch"
	ErrCodeMetadataUnavailable    ErrorCode = "metadata_unavailable"
	ErrCodeCryptoFailure          ErrorCode = "crypto_failure"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// IsSecurityEvent reports whether failures with this code must raise an audit
// event distinct from ordinary validation failures.
func (c ErrorCode) IsSecurityEvent() bool {
	switch c {
	case ErrCodeReplayDetected, ErrCodeSignatureInvalid, ErrCodeSessionBindingMismatch:
		return true
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeEntityNotFound:
		return http.StatusNotFound
	case ErrCodeAuthFailed, ErrCodeSessionInvalid, ErrCodeSessionExpired,
		ErrCodeSessionBindingMismatch, ErrCodeSignatureInvalid,
		ErrCodeUntrustedIssuer, ErrCodeTimestampOutOfRange,
		ErrCodeAudienceMismatch, ErrCodeReplayDetected, ErrCodeUnknownRequestID:
		return http.StatusUnauthorized
	case ErrCodeBadRequest, ErrCodeMalformedMessage:
		return http.StatusBadRequest
	case ErrCodeMetadataUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError is a structured error with code, message, and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ValidationError is a single validation failure from the message validator.
type ValidationError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// ValidationErrors aggregates failures collected within a validation category.
// The validator short-circuits between categories, so all entries come from
// the same processing stage.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = ve.Error()
	}
	return strings.Join(parts, "; ")
}

// Has reports whether any collected failure carries the given code.
func (e ValidationErrors) Has(code ErrorCode) bool {
	for _, ve := range e {
		if ve.Code == code {
			return true
		}
	}
	return false
}

// HasSecurityEvent reports whether any collected failure is audit-worthy.
func (e ValidationErrors) HasSecurityEvent() bool {
	for _, ve := range e {
		if ve.Code.IsSecurityEvent() {
			return true
		}
	}
	return false
}

// ConfigError creates a configuration error.
func ConfigError(message string) *AppError {
	return &AppError{Code: ErrCodeConfigMissing, Message: message}
}

// EntityNotFoundError creates an unknown-entity error.
func EntityNotFoundError(entityID string) *AppError {
	return &AppError{
		Code:    ErrCodeEntityNotFound,
		Message: fmt.Sprintf("the entity %q was not found in the trust store", entityID),
	}
}

// BadRequestError creates a bad request error.
func BadRequestError(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message}
}

// AuthError creates an authentication error with optional cause.
func AuthError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeAuthFailed, Message: message, Cause: cause}
}

// ServiceError creates a service error.
func ServiceError(message string) *AppError {
	return &AppError{Code: ErrCodeServiceError, Message: message}
}

// MetadataUnavailableError creates a trust-data fetch failure error.
func MetadataUnavailableError(entityID string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeMetadataUnavailable,
		Message: fmt.Sprintf("metadata for %q is unavailable", entityID),
		Cause:   cause,
	}
}
