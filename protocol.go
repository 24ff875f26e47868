package samlengine

import (
	"context"
	"encoding/xml"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// SAMLProtocol is the SAML 2.0 implementation of the authentication protocol
// ports. It composes the builder, validator, signer and redirect binding;
// further protocol variants would implement the same interfaces.
type SAMLProtocol struct {
	builder   *Builder
	validator *Validator
	signer    ports.MessageSigner
	trust     ports.TrustStore
	redirect  *RedirectBinding
}

// NewSAMLProtocol creates the SAML protocol implementation. The signer is
// optional; when present, outgoing logout messages are signed. The redirect
// binding carries its own query-signing key.
func NewSAMLProtocol(builder *Builder, validator *Validator, trust ports.TrustStore, redirect *RedirectBinding, signer ports.MessageSigner) *SAMLProtocol {
	return &SAMLProtocol{
		builder:   builder,
		validator: validator,
		signer:    signer,
		trust:     trust,
		redirect:  redirect,
	}
}

// BuildRequest constructs an AuthnRequest for the IdP and encodes it for the
// HTTP-Redirect binding.
func (p *SAMLProtocol) BuildRequest(ctx context.Context, idpEntityID, relayState string) (*ports.LoginRequest, error) {
	req, destination, err := p.builder.BuildAuthnRequest(ctx, idpEntityID, nil)
	if err != nil {
		return nil, err
	}
	redirectURL, err := p.redirect.BuildRedirectURL(destination, req, relayState, true)
	if err != nil {
		return nil, err
	}
	return &ports.LoginRequest{
		RequestID:   req.ID,
		RedirectURL: redirectURL,
	}, nil
}

// ValidateResponse runs the full validation pipeline on a raw response.
func (p *SAMLProtocol) ValidateResponse(ctx context.Context, raw []byte) (*ports.ValidatedResponse, error) {
	return p.validator.ValidateResponse(ctx, raw)
}

// BuildLogout constructs a LogoutRequest for the session's IdP and encodes
// it for the HTTP-Redirect binding.
func (p *SAMLProtocol) BuildLogout(ctx context.Context, session *domain.Session, relayState string) (*ports.LogoutMessage, error) {
	req, destination, err := p.builder.BuildLogoutRequest(ctx, session)
	if err != nil {
		return nil, err
	}
	redirectURL, err := p.redirect.BuildRedirectURL(destination, req, relayState, true)
	if err != nil {
		return nil, err
	}
	return &ports.LogoutMessage{RequestID: req.ID, RedirectURL: redirectURL}, nil
}

// ValidateLogoutRequest validates a peer-initiated logout request.
func (p *SAMLProtocol) ValidateLogoutRequest(ctx context.Context, raw []byte) (*domain.LogoutRequest, error) {
	return p.validator.ValidateLogoutRequest(ctx, raw)
}

// BuildLogoutResponse answers a validated logout request, addressed to the
// issuer's redirect SLO endpoint.
func (p *SAMLProtocol) BuildLogoutResponse(ctx context.Context, req *domain.LogoutRequest, statusValue, relayState string) (*ports.LogoutMessage, error) {
	issuer, err := p.trust.GetEntity(ctx, req.Issuer.Value)
	if err != nil {
		return nil, err
	}
	destination := issuer.EndpointFor(domain.EndpointSingleLogout, domain.BindingHTTPRedirect)
	if destination == "" {
		return nil, domain.EntityNotFoundError(req.Issuer.Value + " (no redirect SLO endpoint)")
	}

	resp := p.builder.BuildLogoutResponse(destination, req.ID, statusValue)
	redirectURL, err := p.redirect.BuildRedirectURL(destination, resp, relayState, false)
	if err != nil {
		return nil, err
	}
	return &ports.LogoutMessage{RedirectURL: redirectURL}, nil
}

// ValidateLogoutResponse validates a logout response from the peer.
func (p *SAMLProtocol) ValidateLogoutResponse(ctx context.Context, raw []byte) (*domain.LogoutResponse, error) {
	return p.validator.ValidateLogoutResponse(ctx, raw)
}

// SignMessage serializes and signs an arbitrary protocol message. Used for
// POST-binding transports where the signature travels inside the document.
func (p *SAMLProtocol) SignMessage(message interface{}) ([]byte, error) {
	data, err := xml.Marshal(message)
	if err != nil {
		return nil, domain.ServiceError("failed to serialize message")
	}
	if p.signer == nil {
		return data, nil
	}
	return p.signer.Sign(data)
}

// Ensure SAMLProtocol implements the protocol ports
var _ ports.AuthenticationProtocol = (*SAMLProtocol)(nil)
var _ ports.LogoutProtocol = (*SAMLProtocol)(nil)
