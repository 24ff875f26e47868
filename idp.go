package samlengine

import (
	"context"
	"encoding/xml"
	"sort"
	"time"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// DefaultAssertionValidity is the assertion window issued when none is
// configured.
const DefaultAssertionValidity = 5 * time.Minute

// AuthenticatedUser is the principal an assertion is issued for.
type AuthenticatedUser struct {
	// NameID is the subject identifier placed in the assertion.
	NameID string

	// NameIDFormat qualifies the identifier. Empty means unspecified.
	NameIDFormat string

	// Attributes are included as an AttributeStatement in stable name order.
	Attributes map[string][]string

	// SessionIndex ties the assertion to the IdP session for later logout.
	SessionIndex string
}

// IdentityProvider issues signed SAML Responses for authenticated principals.
// It makes the engine usable on the issuing side of the protocol and drives
// full-flow tests without external services.
type IdentityProvider struct {
	entityID  string
	signer    ports.MessageSigner
	encrypter ports.AssertionEncrypter
	trust     ports.TrustStore
	validity  time.Duration
	now       func() time.Time
}

// IdPOption configures an IdentityProvider.
type IdPOption func(*IdentityProvider)

// WithAssertionValidity sets the issued assertion window.
func WithAssertionValidity(d time.Duration) IdPOption {
	return func(i *IdentityProvider) { i.validity = d }
}

// WithAssertionEncrypter enables assertion encryption for SPs that publish
// an encryption certificate.
func WithAssertionEncrypter(e ports.AssertionEncrypter) IdPOption {
	return func(i *IdentityProvider) { i.encrypter = e }
}

// WithIdPClock overrides the time source. Used by tests.
func WithIdPClock(now func() time.Time) IdPOption {
	return func(i *IdentityProvider) { i.now = now }
}

// NewIdentityProvider creates an issuer for the given entity ID. The signer
// signs every issued response; the trust store supplies SP endpoints and
// encryption certificates.
func NewIdentityProvider(entityID string, signer ports.MessageSigner, trust ports.TrustStore, opts ...IdPOption) *IdentityProvider {
	idp := &IdentityProvider{
		entityID: entityID,
		signer:   signer,
		trust:    trust,
		validity: DefaultAssertionValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(idp)
	}
	return idp
}

// IssueResponse builds and signs a Response for the SP, answering
// inResponseTo ("" for IdP-initiated SSO). Returns the serialized signed
// response and the SP's POST-binding ACS destination.
func (i *IdentityProvider) IssueResponse(ctx context.Context, spEntityID, inResponseTo string, user *AuthenticatedUser) ([]byte, string, error) {
	sp, err := i.trust.GetEntity(ctx, spEntityID)
	if err != nil {
		return nil, "", err
	}
	acsURL := sp.EndpointFor(domain.EndpointAssertionConsumer, domain.BindingHTTPPost)
	if acsURL == "" {
		return nil, "", domain.EntityNotFoundError(spEntityID + " (no POST ACS endpoint)")
	}

	now := i.now().UTC()
	assertion := i.buildAssertion(spEntityID, acsURL, inResponseTo, user, now)

	resp := &domain.Response{
		ID:           NewMessageID(),
		InResponseTo: inResponseTo,
		Version:      domain.SAMLVersion,
		IssueInstant: now,
		Destination:  acsURL,
		Issuer:       &domain.Issuer{Value: i.entityID},
		Status: domain.Status{
			StatusCode: domain.StatusCode{Value: domain.StatusSuccess},
		},
	}

	if i.encrypter != nil {
		encrypted, err := i.encryptAssertion(assertion, sp, now)
		if err != nil {
			return nil, "", err
		}
		resp.EncryptedAssertion = encrypted
	} else {
		resp.Assertion = assertion
	}

	raw, err := xml.Marshal(resp)
	if err != nil {
		return nil, "", domain.ServiceError("failed to serialize response")
	}
	signed, err := i.signer.Sign(raw)
	if err != nil {
		return nil, "", &domain.AppError{
			Code:    domain.ErrCodeCryptoFailure,
			Message: "failed to sign response",
			Cause:   err,
		}
	}
	return signed, acsURL, nil
}

func (i *IdentityProvider) buildAssertion(spEntityID, acsURL, inResponseTo string, user *AuthenticatedUser, now time.Time) *domain.Assertion {
	nameIDFormat := user.NameIDFormat
	if nameIDFormat == "" {
		nameIDFormat = domain.NameIDFormatUnspecified
	}
	notOnOrAfter := now.Add(i.validity)

	assertion := &domain.Assertion{
		ID:           NewMessageID(),
		Version:      domain.SAMLVersion,
		IssueInstant: now,
		Issuer:       domain.Issuer{Value: i.entityID},
		Subject: &domain.Subject{
			NameID: &domain.NameID{
				Format: nameIDFormat,
				Value:  user.NameID,
			},
			SubjectConfirmations: []domain.SubjectConfirmation{{
				Method: domain.SubjectConfirmationMethodBearer,
				SubjectConfirmationData: &domain.SubjectConfirmationData{
					InResponseTo: inResponseTo,
					NotOnOrAfter: notOnOrAfter,
					Recipient:    acsURL,
				},
			}},
		},
		Conditions: &domain.Conditions{
			NotBefore:    now,
			NotOnOrAfter: notOnOrAfter,
			AudienceRestrictions: []domain.AudienceRestriction{{
				Audiences: []domain.Audience{{Value: spEntityID}},
			}},
		},
		AuthnStatement: &domain.AuthnStatement{
			AuthnInstant: now,
			SessionIndex: user.SessionIndex,
			AuthnContext: domain.AuthnContext{
				AuthnContextClassRef: "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport",
			},
		},
	}

	if len(user.Attributes) > 0 {
		names := make([]string, 0, len(user.Attributes))
		for name := range user.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)

		stmt := &domain.AttributeStatement{}
		for _, name := range names {
			_, friendly := domain.ResolveAttributeName(name)
			stmt.Attributes = append(stmt.Attributes, domain.Attribute{
				Name:         name,
				FriendlyName: friendly,
				Values:       user.Attributes[name],
			})
		}
		assertion.AttributeStatement = stmt
	}
	return assertion
}

// encryptAssertion encrypts the assertion for the SP's encryption
// certificate, falling back over to its signing certificates when the
// metadata declares no dedicated encryption key.
func (i *IdentityProvider) encryptAssertion(assertion *domain.Assertion, sp *domain.Entity, now time.Time) (*domain.EncryptedAssertion, error) {
	certs := sp.CertificatesForUse(domain.CertUseEncryption, now)
	if len(certs) == 0 {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeCryptoFailure,
			Message: "SP publishes no valid encryption certificate",
		}
	}

	plaintext, err := xml.Marshal(assertion)
	if err != nil {
		return nil, domain.ServiceError("failed to serialize assertion")
	}
	envelope, err := i.encrypter.Encrypt(plaintext, certs[0])
	if err != nil {
		return nil, err
	}
	return &domain.EncryptedAssertion{EncryptedData: envelope}, nil
}
