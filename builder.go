package samlengine

import (
	"context"
	"time"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// AuthnOptions tunes an outgoing AuthnRequest.
type AuthnOptions struct {
	// ForceAuthn asks the IdP to re-authenticate even with an active session.
	ForceAuthn bool

	// NameIDFormat constrains the returned subject identifier format.
	// Empty means no NameIDPolicy element is emitted.
	NameIDFormat string

	// AuthnContextClassRefs requests particular authentication contexts.
	AuthnContextClassRefs []string

	// Comparison qualifies the context request ("exact", "minimum", ...).
	// Only used when AuthnContextClassRefs is non-empty.
	Comparison string
}

// Builder constructs outgoing SAML protocol messages. Message IDs come from
// a cryptographically secure source and are never reused; destinations are
// resolved from the trust store at build time.
type Builder struct {
	entityID string
	acsURL   string
	trust    ports.TrustStore
	now      func() time.Time
}

// NewBuilder creates a builder for the SP identified by entityID with the
// given assertion consumer service URL.
func NewBuilder(entityID, acsURL string, trust ports.TrustStore) *Builder {
	return &Builder{
		entityID: entityID,
		acsURL:   acsURL,
		trust:    trust,
		now:      time.Now,
	}
}

// BuildAuthnRequest constructs an AuthnRequest addressed to the IdP's
// HTTP-Redirect SSO endpoint. Returns the request and its destination URL.
func (b *Builder) BuildAuthnRequest(ctx context.Context, idpEntityID string, opts *AuthnOptions) (*domain.AuthnRequest, string, error) {
	idp, err := b.trust.GetEntity(ctx, idpEntityID)
	if err != nil {
		return nil, "", err
	}

	destination := idp.EndpointFor(domain.EndpointSingleSignOn, domain.BindingHTTPRedirect)
	if destination == "" {
		return nil, "", domain.EntityNotFoundError(idpEntityID + " (no redirect SSO endpoint)")
	}

	req := &domain.AuthnRequest{
		ID:                          NewMessageID(),
		Version:                     domain.SAMLVersion,
		IssueInstant:                b.now().UTC(),
		Destination:                 destination,
		AssertionConsumerServiceURL: b.acsURL,
		ProtocolBinding:             domain.BindingHTTPPost,
		Issuer:                      domain.Issuer{Value: b.entityID},
	}

	if opts != nil {
		req.ForceAuthn = opts.ForceAuthn
		if opts.NameIDFormat != "" {
			req.NameIDPolicy = &domain.NameIDPolicy{
				AllowCreate: true,
				Format:      opts.NameIDFormat,
			}
		}
		if len(opts.AuthnContextClassRefs) > 0 {
			req.RequestedAuthnContext = &domain.RequestedAuthnContext{
				Comparison:           opts.Comparison,
				AuthnContextClassRef: opts.AuthnContextClassRefs,
			}
		}
	}

	return req, destination, nil
}

// BuildResponse wraps an assertion in a Response addressed to destination,
// answering the request identified by inResponseTo ("" for unsolicited).
func (b *Builder) BuildResponse(assertion *domain.Assertion, destination, inResponseTo string) *domain.Response {
	return &domain.Response{
		ID:           NewMessageID(),
		InResponseTo: inResponseTo,
		Version:      domain.SAMLVersion,
		IssueInstant: b.now().UTC(),
		Destination:  destination,
		Issuer:       &domain.Issuer{Value: b.entityID},
		Status: domain.Status{
			StatusCode: domain.StatusCode{Value: domain.StatusSuccess},
		},
		Assertion: assertion,
	}
}

// BuildLogoutRequest constructs a LogoutRequest for the session's IdP,
// addressed to its redirect SLO endpoint. Returns the request and its
// destination URL.
func (b *Builder) BuildLogoutRequest(ctx context.Context, session *domain.Session) (*domain.LogoutRequest, string, error) {
	idp, err := b.trust.GetEntity(ctx, session.IdPEntityID)
	if err != nil {
		return nil, "", err
	}

	destination := idp.EndpointFor(domain.EndpointSingleLogout, domain.BindingHTTPRedirect)
	if destination == "" {
		return nil, "", domain.EntityNotFoundError(session.IdPEntityID + " (no redirect SLO endpoint)")
	}

	req := &domain.LogoutRequest{
		ID:           NewMessageID(),
		Version:      domain.SAMLVersion,
		IssueInstant: b.now().UTC(),
		Destination:  destination,
		Issuer:       domain.Issuer{Value: b.entityID},
		NameID: domain.NameID{
			Format: session.NameIDFormat,
			Value:  session.UserID,
		},
	}
	if session.IdPSessionIndex != "" {
		req.SessionIndex = []string{session.IdPSessionIndex}
	}
	return req, destination, nil
}

// BuildLogoutResponse constructs the LogoutResponse answering inResponseTo
// with the given status code value.
func (b *Builder) BuildLogoutResponse(destination, inResponseTo, statusValue string) *domain.LogoutResponse {
	return &domain.LogoutResponse{
		ID:           NewMessageID(),
		InResponseTo: inResponseTo,
		Version:      domain.SAMLVersion,
		IssueInstant: b.now().UTC(),
		Destination:  destination,
		Issuer:       domain.Issuer{Value: b.entityID},
		Status: domain.Status{
			StatusCode: domain.StatusCode{Value: statusValue},
		},
	}
}
