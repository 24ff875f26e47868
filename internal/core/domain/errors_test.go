//go:build unit

package domain

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorCode_IsSecurityEvent(t *testing.T) {
	securityCodes := []ErrorCode{
		ErrCodeReplayDetected,
		ErrCodeSignatureInvalid,
		ErrCodeSessionBindingMismatch,
	}
	for _, code := range securityCodes {
		if !code.IsSecurityEvent() {
			t.Errorf("%s should be a security event", code)
		}
	}

	ordinaryCodes := []ErrorCode{
		ErrCodeTimestampOutOfRange,
		ErrCodeAudienceMismatch,
		ErrCodeMalformedMessage,
		ErrCodeSessionExpired,
	}
	for _, code := range ordinaryCodes {
		if code.IsSecurityEvent() {
			t.Errorf("%s should not be a security event", code)
		}
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeEntityNotFound, http.StatusNotFound},
		{ErrCodeSignatureInvalid, http.StatusUnauthorized},
		{ErrCodeReplayDetected, http.StatusUnauthorized},
		{ErrCodeMalformedMessage, http.StatusBadRequest},
		{ErrCodeMetadataUnavailable, http.StatusServiceUnavailable},
		{ErrCodeServiceError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := AuthError("login failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through AppError to the cause")
	}
	if err.Error() != "login failed" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidationErrors_Aggregate(t *testing.T) {
	errs := ValidationErrors{
		{Code: ErrCodeTimestampOutOfRange, Message: "NotOnOrAfter has passed"},
		{Code: ErrCodeSignatureInvalid, Message: "digest mismatch"},
	}

	if !errs.Has(ErrCodeTimestampOutOfRange) {
		t.Error("Has should find the timestamp failure")
	}
	if errs.Has(ErrCodeReplayDetected) {
		t.Error("Has should not report an absent code")
	}
	if !errs.HasSecurityEvent() {
		t.Error("signature failure should mark the aggregate as a security event")
	}

	msg := errs.Error()
	if msg == "" || msg == "validation failed" {
		t.Errorf("aggregate message should list failures, got %q", msg)
	}
}

func TestValidationErrors_Empty(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("empty aggregate message = %q", errs.Error())
	}
	if errs.HasSecurityEvent() {
		t.Error("empty aggregate has no security events")
	}
}
