package samlengine

import (
	"github.com/philiph/saml-engine/internal/core/domain"
)

// Re-export error types from domain
type ErrorCode = domain.ErrorCode
type AppError = domain.AppError
type ValidationError = domain.ValidationError
type ValidationErrors = domain.ValidationErrors

// Re-export error codes
const (
	ErrCodeConfigMissing          = domain.ErrCodeConfigMissing
	ErrCodeEntityNotFound         = domain.ErrCodeEntityNotFound
	ErrCodeAuthFailed             = domain.ErrCodeAuthFailed
	ErrCodeSessionInvalid         = domain.ErrCodeSessionInvalid
	ErrCodeServiceError           = domain.ErrCodeServiceError
	ErrCodeBadRequest             = domain.ErrCodeBadRequest
	ErrCodeMalformedMessage       = domain.ErrCodeMalformedMessage
	ErrCodeSignatureInvalid       = domain.ErrCodeSignatureInvalid
	ErrCodeUntrustedIssuer        = domain.ErrCodeUntrustedIssuer
	ErrCodeTimestampOutOfRange    = domain.ErrCodeTimestampOutOfRange
	ErrCodeAudienceMismatch       = domain.ErrCodeAudienceMismatch
	ErrCodeReplayDetected         = domain.ErrCodeReplayDetected
	ErrCodeUnknownRequestID       = domain.ErrCodeUnknownRequestID
	ErrCodeSessionExpired         = domain.ErrCodeSessionExpired
	ErrCodeSessionBindingMismatch = domain.ErrCodeSessionBindingMismatch
	ErrCodeMetadataUnavailable    = domain.ErrCodeMetadataUnavailable
	ErrCodeCryptoFailure          = domain.ErrCodeCryptoFailure
)

// Re-export error constructors
var (
	ConfigError              = domain.ConfigError
	EntityNotFoundError      = domain.EntityNotFoundError
	BadRequestError          = domain.BadRequestError
	AuthError                = domain.AuthError
	ServiceError             = domain.ServiceError
	MetadataUnavailableError = domain.MetadataUnavailableError
)

// Re-export sentinel errors
var (
	ErrEntityNotFound  = domain.ErrEntityNotFound
	ErrMetadataExpired = domain.ErrMetadataExpired
)
