package samlengine

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/philiph/saml-engine/internal/adapters/driven/crypto"
	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// DefaultClockSkew is the timestamp tolerance applied when none is configured.
const DefaultClockSkew = 300 * time.Second

// maxResponseSize bounds incoming messages before any XML parsing.
const maxResponseSize = 1 << 20 // 1 MiB

// ValidatorConfig carries the SP identity and validation policy.
type ValidatorConfig struct {
	// SPEntityID is this SP's entity ID, checked against audience restrictions.
	SPEntityID string

	// ACSURL is the assertion consumer endpoint, checked against Destination
	// and Recipient.
	ACSURL string

	// ClockSkew is the timestamp tolerance. Zero means DefaultClockSkew.
	ClockSkew time.Duration
}

// Validator runs the ordered validation pipeline over incoming responses:
// size/schema, signature, timestamps, audience/destination, replay, and
// structural checks. Categories short-circuit; failures within a category are
// collected. Any failing category invalidates the whole message.
//
// The validator is per-request-local: it holds no mutable state of its own
// and is safe for concurrent use.
type Validator struct {
	cfg       ValidatorConfig
	trust     ports.TrustStore
	verifier  ports.MessageVerifier
	decrypter ports.AssertionDecrypter
	replay    ports.ReplayGuard
	metrics   ports.MetricsRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithDecrypter enables EncryptedAssertion handling.
func WithDecrypter(d ports.AssertionDecrypter) ValidatorOption {
	return func(v *Validator) { v.decrypter = d }
}

// WithValidatorLogger attaches a logger.
func WithValidatorLogger(logger *zap.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = logger }
}

// WithValidatorMetrics attaches a metrics recorder.
func WithValidatorMetrics(m ports.MetricsRecorder) ValidatorOption {
	return func(v *Validator) { v.metrics = m }
}

// WithValidatorClock overrides the time source. Used by tests.
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a validator with the given policy and dependencies.
func NewValidator(cfg ValidatorConfig, trust ports.TrustStore, verifier ports.MessageVerifier, replay ports.ReplayGuard, opts ...ValidatorOption) *Validator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	v := &Validator{
		cfg:      cfg,
		trust:    trust,
		verifier: verifier,
		replay:   replay,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateResponse validates a raw SAML Response addressed to this SP.
// On success it returns the typed assertion and extracted attributes; on
// failure it returns domain.ValidationErrors carrying every failure from the
// category that stopped processing.
func (v *Validator) ValidateResponse(ctx context.Context, raw []byte) (*ports.ValidatedResponse, error) {
	// 1. Size and schema.
	resp, errs := v.checkSchema(raw)
	if len(errs) > 0 {
		return nil, v.fail(errs)
	}

	// 2. Signature, decrypting the assertion first when needed.
	assertion, errs := v.checkSignature(ctx, raw, resp)
	if len(errs) > 0 {
		return nil, v.fail(errs)
	}

	now := v.now()

	// 3. Timestamps.
	if errs := v.checkTimestamps(now, resp, assertion); len(errs) > 0 {
		return nil, v.fail(errs)
	}

	// 4. Audience and destination.
	if errs := v.checkAudience(resp, assertion); len(errs) > 0 {
		return nil, v.fail(errs)
	}

	// 5. Replay, keyed by assertion ID with the assertion's own window.
	if errs := v.checkReplay(assertion); len(errs) > 0 {
		return nil, v.fail(errs)
	}

	// 6. Structural correctness of subject and attributes.
	if errs := v.checkStructure(assertion); len(errs) > 0 {
		return nil, v.fail(errs)
	}

	return &ports.ValidatedResponse{
		Assertion:    assertion,
		Attributes:   domain.ExtractAttributes(assertion.AttributeStatement),
		InResponseTo: resp.InResponseTo,
	}, nil
}

// fail records metrics for every collected failure and returns the aggregate.
func (v *Validator) fail(errs domain.ValidationErrors) error {
	for _, ve := range errs {
		if v.metrics != nil {
			v.metrics.RecordValidationFailure(ve.Code.String())
		}
		if v.logger != nil {
			v.logger.Warn("response validation failed",
				zap.String("kind", ve.Code.String()),
				zap.String("detail", ve.Message),
			)
		}
	}
	return errs
}

func (v *Validator) checkSchema(raw []byte) (*domain.Response, domain.ValidationErrors) {
	var errs domain.ValidationErrors
	if len(raw) == 0 {
		return nil, append(errs, &domain.ValidationError{
			Code: domain.ErrCodeMalformedMessage, Message: "empty message",
		})
	}
	if len(raw) > maxResponseSize {
		return nil, append(errs, &domain.ValidationError{
			Code:    domain.ErrCodeMalformedMessage,
			Message: fmt.Sprintf("message exceeds %d bytes", maxResponseSize),
		})
	}

	var resp domain.Response
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, append(errs, &domain.ValidationError{
			Code: domain.ErrCodeMalformedMessage, Message: "message is not a well-formed Response", Cause: err,
		})
	}
	if resp.Version != domain.SAMLVersion {
		errs = append(errs, &domain.ValidationError{
			Code:    domain.ErrCodeMalformedMessage,
			Message: fmt.Sprintf("unsupported SAML version %q", resp.Version),
		})
	}
	if resp.Issuer == nil || resp.Issuer.Value == "" {
		errs = append(errs, &domain.ValidationError{
			Code: domain.ErrCodeMalformedMessage, Message: "response has no Issuer",
		})
	}
	if !resp.Status.Success() {
		errs = append(errs, &domain.ValidationError{
			Code:    domain.ErrCodeMalformedMessage,
			Message: fmt.Sprintf("response status %q is not success", resp.Status.StatusCode.Value),
		})
	}
	if resp.Assertion == nil && resp.EncryptedAssertion == nil {
		errs = append(errs, &domain.ValidationError{
			Code: domain.ErrCodeMalformedMessage, Message: "response carries no assertion",
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &resp, nil
}

// checkSignature verifies the response or assertion signature against the
// issuer's currently-valid signing certificates and returns the assertion
// parsed from validated bytes. Policy requires a signature on at least one
// of the two levels; an unsigned message is untrusted.
func (v *Validator) checkSignature(ctx context.Context, raw []byte, resp *domain.Response) (*domain.Assertion, domain.ValidationErrors) {
	issuer, err := v.trust.GetEntity(ctx, resp.Issuer.Value)
	if err != nil {
		code := domain.ErrCodeUntrustedIssuer
		if appErr, ok := err.(*domain.AppError); ok && appErr.Code == domain.ErrCodeMetadataUnavailable {
			code = domain.ErrCodeMetadataUnavailable
		}
		return nil, domain.ValidationErrors{{
			Code:    code,
			Message: fmt.Sprintf("issuer %q is not trusted", resp.Issuer.Value),
			Cause:   err,
		}}
	}

	certs := issuer.CertificatesForUse(domain.CertUseSigning, v.now())
	if len(certs) == 0 {
		return nil, domain.ValidationErrors{{
			Code:    domain.ErrCodeUntrustedIssuer,
			Message: fmt.Sprintf("issuer %q has no valid signing certificates", resp.Issuer.Value),
		}}
	}

	if crypto.IsSigned(raw) {
		// Response-level signature covers the embedded assertion.
		validated, err := v.verifier.Verify(raw, certs)
		if err != nil {
			return nil, domain.ValidationErrors{{
				Code: domain.ErrCodeSignatureInvalid, Message: "response signature verification failed", Cause: err,
			}}
		}
		var vresp domain.Response
		if err := xml.Unmarshal(validated, &vresp); err != nil {
			return nil, domain.ValidationErrors{{
				Code: domain.ErrCodeMalformedMessage, Message: "validated response failed to parse", Cause: err,
			}}
		}
		assertion, errs := v.materializeAssertion(&vresp, validated)
		if len(errs) > 0 {
			return nil, errs
		}
		return assertion, nil
	}

	// Unsigned response: the assertion itself must carry the signature.
	assertionXML, errs := v.assertionBytes(resp, raw)
	if len(errs) > 0 {
		return nil, errs
	}
	if !crypto.IsSigned(assertionXML) {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeSignatureInvalid, Message: "neither response nor assertion is signed",
		}}
	}
	validated, err := v.verifier.Verify(assertionXML, certs)
	if err != nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeSignatureInvalid, Message: "assertion signature verification failed", Cause: err,
		}}
	}
	var assertion domain.Assertion
	if err := xml.Unmarshal(validated, &assertion); err != nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "validated assertion failed to parse", Cause: err,
		}}
	}
	return &assertion, nil
}

// materializeAssertion returns the typed assertion from a response whose
// signature already verified, decrypting it when necessary.
func (v *Validator) materializeAssertion(resp *domain.Response, raw []byte) (*domain.Assertion, domain.ValidationErrors) {
	if resp.Assertion != nil {
		return resp.Assertion, nil
	}
	plaintext, errs := v.decryptAssertion(resp)
	if len(errs) > 0 {
		return nil, errs
	}
	var assertion domain.Assertion
	if err := xml.Unmarshal(plaintext, &assertion); err != nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "decrypted assertion failed to parse", Cause: err,
		}}
	}
	return &assertion, nil
}

// assertionBytes extracts the assertion XML from the raw response, decrypting
// an EncryptedAssertion when present.
func (v *Validator) assertionBytes(resp *domain.Response, raw []byte) ([]byte, domain.ValidationErrors) {
	if resp.EncryptedAssertion != nil {
		return v.decryptAssertion(resp)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "response failed to parse", Cause: err,
		}}
	}
	el := doc.Root().FindElement("./Assertion")
	if el == nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "response carries no assertion element",
		}}
	}
	assertionDoc := etree.NewDocument()
	assertionDoc.SetRoot(el.Copy())
	out, err := assertionDoc.WriteToBytes()
	if err != nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "failed to serialize assertion", Cause: err,
		}}
	}
	return out, nil
}

func (v *Validator) decryptAssertion(resp *domain.Response) ([]byte, domain.ValidationErrors) {
	if v.decrypter == nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeCryptoFailure, Message: "response carries an encrypted assertion but no decryption key is configured",
		}}
	}
	envelope := append([]byte("<EncryptedAssertion xmlns=\"urn:oasis:names:tc:SAML:2.0:assertion\">"), resp.EncryptedAssertion.EncryptedData...)
	envelope = append(envelope, []byte("</EncryptedAssertion>")...)
	plaintext, err := v.decrypter.Decrypt(envelope)
	if err != nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeCryptoFailure, Message: "assertion decryption failed", Cause: err,
		}}
	}
	return plaintext, nil
}

// checkTimestamps validates every time constraint against now with the
// configured skew tolerance. Failures are collected, not short-circuited.
func (v *Validator) checkTimestamps(now time.Time, resp *domain.Response, assertion *domain.Assertion) domain.ValidationErrors {
	var errs domain.ValidationErrors
	skew := v.cfg.ClockSkew

	if resp.IssueInstant.After(now.Add(skew)) || resp.IssueInstant.Before(now.Add(-skew)) {
		errs = append(errs, &domain.ValidationError{
			Code:    domain.ErrCodeTimestampOutOfRange,
			Message: fmt.Sprintf("response IssueInstant %s outside skew tolerance", resp.IssueInstant.Format(time.RFC3339)),
		})
	}
	if assertion.IssueInstant.After(now.Add(skew)) || assertion.IssueInstant.Before(now.Add(-skew)) {
		errs = append(errs, &domain.ValidationError{
			Code:    domain.ErrCodeTimestampOutOfRange,
			Message: fmt.Sprintf("assertion IssueInstant %s outside skew tolerance", assertion.IssueInstant.Format(time.RFC3339)),
		})
	}

	if cond := assertion.Conditions; cond != nil {
		if !cond.NotBefore.IsZero() && now.Add(skew).Before(cond.NotBefore) {
			errs = append(errs, &domain.ValidationError{
				Code:    domain.ErrCodeTimestampOutOfRange,
				Message: fmt.Sprintf("assertion not valid before %s", cond.NotBefore.Format(time.RFC3339)),
			})
		}
		if !cond.NotOnOrAfter.IsZero() && !now.Add(-skew).Before(cond.NotOnOrAfter) {
			errs = append(errs, &domain.ValidationError{
				Code:    domain.ErrCodeTimestampOutOfRange,
				Message: fmt.Sprintf("assertion expired at %s", cond.NotOnOrAfter.Format(time.RFC3339)),
			})
		}
	}

	if subject := assertion.Subject; subject != nil {
		for _, sc := range subject.SubjectConfirmations {
			scd := sc.SubjectConfirmationData
			if scd == nil || scd.NotOnOrAfter.IsZero() {
				continue
			}
			if !now.Add(-skew).Before(scd.NotOnOrAfter) {
				errs = append(errs, &domain.ValidationError{
					Code:    domain.ErrCodeTimestampOutOfRange,
					Message: fmt.Sprintf("subject confirmation expired at %s", scd.NotOnOrAfter.Format(time.RFC3339)),
				})
			}
		}
	}
	return errs
}

// checkAudience validates destination, recipient and audience restrictions.
func (v *Validator) checkAudience(resp *domain.Response, assertion *domain.Assertion) domain.ValidationErrors {
	var errs domain.ValidationErrors

	if resp.Destination != "" && resp.Destination != v.cfg.ACSURL {
		errs = append(errs, &domain.ValidationError{
			Code:    domain.ErrCodeAudienceMismatch,
			Message: fmt.Sprintf("response destination %q is not this SP's ACS endpoint", resp.Destination),
		})
	}

	if subject := assertion.Subject; subject != nil {
		for _, sc := range subject.SubjectConfirmations {
			scd := sc.SubjectConfirmationData
			if scd != nil && scd.Recipient != "" && scd.Recipient != v.cfg.ACSURL {
				errs = append(errs, &domain.ValidationError{
					Code:    domain.ErrCodeAudienceMismatch,
					Message: fmt.Sprintf("subject confirmation recipient %q is not this SP's ACS endpoint", scd.Recipient),
				})
			}
		}
	}

	if cond := assertion.Conditions; cond != nil && len(cond.AudienceRestrictions) > 0 {
		found := false
		for _, aud := range cond.AudienceValues() {
			if aud == v.cfg.SPEntityID {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, &domain.ValidationError{
				Code:    domain.ErrCodeAudienceMismatch,
				Message: fmt.Sprintf("audience restriction excludes %q", v.cfg.SPEntityID),
			})
		}
	}
	return errs
}

func (v *Validator) checkReplay(assertion *domain.Assertion) domain.ValidationErrors {
	window := v.now().Add(v.cfg.ClockSkew)
	if cond := assertion.Conditions; cond != nil && !cond.NotOnOrAfter.IsZero() {
		window = cond.NotOnOrAfter
	}
	if !v.replay.CheckAndMark(assertion.ID, window) {
		if v.metrics != nil {
			v.metrics.RecordReplayRejected()
		}
		return domain.ValidationErrors{{
			Code:    domain.ErrCodeReplayDetected,
			Message: fmt.Sprintf("assertion %q was already consumed", assertion.ID),
		}}
	}
	return nil
}

func (v *Validator) checkStructure(assertion *domain.Assertion) domain.ValidationErrors {
	var errs domain.ValidationErrors

	if assertion.ID == "" {
		errs = append(errs, &domain.ValidationError{
			Code: domain.ErrCodeMalformedMessage, Message: "assertion has no ID",
		})
	}
	if assertion.Subject == nil || assertion.Subject.NameID == nil || assertion.Subject.NameID.Value == "" {
		errs = append(errs, &domain.ValidationError{
			Code: domain.ErrCodeMalformedMessage, Message: "assertion has no subject NameID",
		})
	} else {
		bearer := false
		for _, sc := range assertion.Subject.SubjectConfirmations {
			if sc.Method == domain.SubjectConfirmationMethodBearer {
				bearer = true
			}
		}
		if len(assertion.Subject.SubjectConfirmations) > 0 && !bearer {
			errs = append(errs, &domain.ValidationError{
				Code: domain.ErrCodeMalformedMessage, Message: "no bearer subject confirmation",
			})
		}
	}
	if stmt := assertion.AttributeStatement; stmt != nil {
		for _, attr := range stmt.Attributes {
			if attr.Name == "" && attr.FriendlyName == "" {
				errs = append(errs, &domain.ValidationError{
					Code: domain.ErrCodeMalformedMessage, Message: "attribute with no name",
				})
			}
		}
	}
	return errs
}

// ValidateLogoutRequest validates an incoming LogoutRequest: schema, trusted
// issuer, and timestamp skew. Transport-level signatures (redirect query) are
// checked by the caller before the message reaches here.
func (v *Validator) ValidateLogoutRequest(ctx context.Context, raw []byte) (*domain.LogoutRequest, error) {
	if len(raw) == 0 || len(raw) > maxResponseSize {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "logout request size out of bounds",
		}}
	}
	var req domain.LogoutRequest
	if err := xml.Unmarshal(raw, &req); err != nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "malformed logout request", Cause: err,
		}}
	}
	if req.NameID.Value == "" {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "logout request has no NameID",
		}}
	}
	if _, err := v.trust.GetEntity(ctx, req.Issuer.Value); err != nil {
		return nil, domain.ValidationErrors{{
			Code:    domain.ErrCodeUntrustedIssuer,
			Message: fmt.Sprintf("logout request issuer %q is not trusted", req.Issuer.Value),
			Cause:   err,
		}}
	}
	now := v.now()
	if req.IssueInstant.After(now.Add(v.cfg.ClockSkew)) || req.IssueInstant.Before(now.Add(-v.cfg.ClockSkew)) {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeTimestampOutOfRange, Message: "logout request IssueInstant outside skew tolerance",
		}}
	}
	return &req, nil
}

// ValidateLogoutResponse validates an incoming LogoutResponse the same way.
func (v *Validator) ValidateLogoutResponse(ctx context.Context, raw []byte) (*domain.LogoutResponse, error) {
	if len(raw) == 0 || len(raw) > maxResponseSize {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "logout response size out of bounds",
		}}
	}
	var resp domain.LogoutResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, domain.ValidationErrors{{
			Code: domain.ErrCodeMalformedMessage, Message: "malformed logout response", Cause: err,
		}}
	}
	if _, err := v.trust.GetEntity(ctx, resp.Issuer.Value); err != nil {
		return nil, domain.ValidationErrors{{
			Code:    domain.ErrCodeUntrustedIssuer,
			Message: fmt.Sprintf("logout response issuer %q is not trusted", resp.Issuer.Value),
			Cause:   err,
		}}
	}
	return &resp, nil
}
