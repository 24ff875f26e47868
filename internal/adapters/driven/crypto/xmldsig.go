package crypto

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// XMLDsigSigner signs SAML messages with enveloped XML signatures.
type XMLDsigSigner struct {
	privateKey  *rsa.PrivateKey
	certificate *x509.Certificate
}

// NewXMLDsigSigner creates a signer with the given key pair.
func NewXMLDsigSigner(privateKey *rsa.PrivateKey, certificate *x509.Certificate) *XMLDsigSigner {
	return &XMLDsigSigner{
		privateKey:  privateKey,
		certificate: certificate,
	}
}

// Sign adds an enveloped XML signature to the document and returns signed bytes.
func (s *XMLDsigSigner) Sign(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty XML document")
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{s.certificate.Raw},
		PrivateKey:  s.privateKey,
	}
	keyStore := dsig.TLSCertKeyStore(tlsCert)

	signingContext := dsig.NewDefaultSigningContext(keyStore)
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signedRoot, err := signingContext.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("sign XML: %w", err)
	}

	doc.SetRoot(signedRoot)

	signedBytes, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize signed XML: %w", err)
	}

	return signedBytes, nil
}

// XMLDsigVerifier verifies enveloped XML signatures using goxmldsig.
// The verifier holds no per-message state: trust anchors are supplied per
// call, so it is safe for concurrent use and supports certificate rotation
// by trying every currently-valid certificate of the issuer.
type XMLDsigVerifier struct {
	logger *zap.Logger
}

// NewXMLDsigVerifier creates a stateless signature verifier.
func NewXMLDsigVerifier() *XMLDsigVerifier {
	return &XMLDsigVerifier{}
}

// NewXMLDsigVerifierWithLogger creates a verifier that logs verification events.
func NewXMLDsigVerifierWithLogger(logger *zap.Logger) *XMLDsigVerifier {
	return &XMLDsigVerifier{logger: logger}
}

// Verify validates the XML signature on the document against the trust
// anchors and returns the validated XML bytes. Fails closed: any parse or
// signature error yields an error, never default trust.
func (v *XMLDsigVerifier) Verify(data []byte, certs []*x509.Certificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "no trust anchor certificates available",
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "failed to parse signed XML",
			Cause:   err,
		}
	}

	root := doc.Root()
	if root == nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "empty XML document",
		}
	}

	ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: certs,
	})

	validated, err := ctx.Validate(root)
	if err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "signature verification failed",
			Cause:   err,
		}
	}

	if v.logger != nil {
		v.logger.Debug("signature verified",
			zap.String("element", validated.Tag),
			zap.Int("trust_anchors", len(certs)),
		)
	}

	// Re-serialize the validated element to prevent signature wrapping attacks
	validatedDoc := etree.NewDocument()
	validatedDoc.SetRoot(validated)
	result, err := validatedDoc.WriteToBytes()
	if err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeServiceError,
			Message: "failed to serialize validated XML",
			Cause:   err,
		}
	}
	return result, nil
}

// IsSigned reports whether the document's root element carries an enveloped
// Signature child. Used to decide between response-level and assertion-level
// signature checks.
func IsSigned(data []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return false
	}
	root := doc.Root()
	if root == nil {
		return false
	}
	for _, child := range root.ChildElements() {
		if child.Tag == "Signature" {
			return true
		}
	}
	return false
}

// Ensure implementations satisfy interfaces
var _ ports.MessageSigner = (*XMLDsigSigner)(nil)
var _ ports.MessageVerifier = (*XMLDsigVerifier)(nil)
