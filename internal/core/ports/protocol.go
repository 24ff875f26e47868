package ports

import (
	"context"

	"github.com/philiph/saml-engine/internal/core/domain"
)

// LoginRequest is a protocol-built authentication request ready for
// transport encoding.
type LoginRequest struct {
	// RequestID is the unguessable message ID to track until the response.
	RequestID string

	// RedirectURL is the fully encoded IdP redirect, relay state included.
	RedirectURL string
}

// ValidatedResponse is the outcome of successful response validation:
// a typed assertion plus the request ID it answers ("" when unsolicited).
type ValidatedResponse struct {
	Assertion    *domain.Assertion
	Attributes   *domain.AttributeValues
	InResponseTo string
}

// LogoutMessage is a protocol-built logout request or response ready for
// transport encoding.
type LogoutMessage struct {
	// RequestID is the outgoing message ID, used to match the peer's
	// confirmation. Empty for responses.
	RequestID string

	// RedirectURL carries the message via HTTP-Redirect binding.
	RedirectURL string
}

// AuthenticationProtocol is the protocol capability the flow orchestrator
// depends on. The SAML implementation lives in the root package; further
// variants (e.g. OIDC) would implement the same interface.
type AuthenticationProtocol interface {
	// BuildRequest constructs an authentication request addressed to the
	// given IdP and returns its transport encoding.
	BuildRequest(ctx context.Context, idpEntityID, relayState string) (*LoginRequest, error)

	// ValidateResponse validates a raw provider response for this SP.
	// Validation failures are returned as domain.ValidationErrors.
	ValidateResponse(ctx context.Context, raw []byte) (*ValidatedResponse, error)

	// BuildLogout constructs a logout request for the session's IdP.
	BuildLogout(ctx context.Context, session *domain.Session, relayState string) (*LogoutMessage, error)
}

// LogoutProtocol is the inbound logout capability: processing logout
// messages initiated by the peer and answering them.
type LogoutProtocol interface {
	// ValidateLogoutRequest validates a raw peer-initiated logout request.
	ValidateLogoutRequest(ctx context.Context, raw []byte) (*domain.LogoutRequest, error)

	// BuildLogoutResponse answers a validated logout request with the given
	// SAML status value and returns its transport encoding.
	BuildLogoutResponse(ctx context.Context, req *domain.LogoutRequest, statusValue, relayState string) (*LogoutMessage, error)

	// ValidateLogoutResponse validates a raw logout response from the peer.
	ValidateLogoutResponse(ctx context.Context, raw []byte) (*domain.LogoutResponse, error)
}
