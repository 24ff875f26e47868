//go:build unit

package trust

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/testfixtures/keys"
)

// idpMetadata renders a minimal IdP EntityDescriptor. validUntil is omitted
// when zero.
func idpMetadata(t *testing.T, entityID string, pair *keys.Pair, validUntil time.Time) []byte {
	t.Helper()
	certB64 := base64.StdEncoding.EncodeToString(pair.Cert.Raw)
	validUntilAttr := ""
	if !validUntil.IsZero() {
		validUntilAttr = fmt.Sprintf(` validUntil=%q`, validUntil.UTC().Format(time.RFC3339))
	}
	return []byte(fmt.Sprintf(`<EntityDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata" entityID=%q%s>
  <IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <KeyDescriptor use="signing">
      <KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#">
        <X509Data><X509Certificate>%s</X509Certificate></X509Data>
      </KeyInfo>
    </KeyDescriptor>
    <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="%s/sso"/>
    <SingleLogoutService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="%s/slo"/>
  </IDPSSODescriptor>
</EntityDescriptor>`, entityID, validUntilAttr, certB64, entityID, entityID))
}

func TestParseMetadata_SingleEntity(t *testing.T) {
	pair := keys.Generate(t, "idp.example.com")
	data := idpMetadata(t, "https://idp.example.com", pair, time.Time{})

	entities, err := ParseMetadata(data)
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("parsed %d entities, want 1", len(entities))
	}

	e := entities[0]
	if e.EntityID != "https://idp.example.com" {
		t.Errorf("EntityID = %q", e.EntityID)
	}
	if got := e.EndpointFor(domain.EndpointSingleSignOn, domain.BindingHTTPRedirect); got != "https://idp.example.com/sso" {
		t.Errorf("SSO endpoint = %q", got)
	}
	if got := e.EndpointFor(domain.EndpointSingleLogout, domain.BindingHTTPRedirect); got != "https://idp.example.com/slo" {
		t.Errorf("SLO endpoint = %q", got)
	}
	if len(e.Certificates) != 1 {
		t.Fatalf("parsed %d certificates, want 1", len(e.Certificates))
	}
	if e.Certificates[0].Use != domain.CertUseSigning {
		t.Errorf("certificate use = %q", e.Certificates[0].Use)
	}
	if e.Certificates[0].Thumbprint != domain.CertThumbprint(pair.Cert) {
		t.Error("certificate thumbprint mismatch")
	}
}

func TestParseMetadata_ExpiredValidUntil(t *testing.T) {
	pair := keys.Generate(t, "idp.example.com")
	data := idpMetadata(t, "https://idp.example.com", pair, time.Now().Add(-time.Hour))

	_, err := ParseMetadata(data)
	if !errors.Is(err, domain.ErrMetadataExpired) {
		t.Errorf("error = %v, want ErrMetadataExpired", err)
	}
}

func TestParseMetadata_FutureValidUntil(t *testing.T) {
	pair := keys.Generate(t, "idp.example.com")
	validUntil := time.Now().Add(24 * time.Hour)
	data := idpMetadata(t, "https://idp.example.com", pair, validUntil)

	entities, err := ParseMetadata(data)
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if entities[0].ValidUntil.IsZero() {
		t.Error("ValidUntil should be carried onto the entity")
	}
}

// A marshaled zero timestamp is an absent expiry, not a past one.
func TestParseMetadata_ZeroValidUntilTreatedAsAbsent(t *testing.T) {
	pair := keys.Generate(t, "idp.example.com")
	data := idpMetadata(t, "https://idp.example.com", pair, time.Time{})
	data = bytes.Replace(data,
		[]byte(`entityID="https://idp.example.com"`),
		[]byte(`entityID="https://idp.example.com" validUntil="0001-01-01T00:00:00Z"`), 1)

	entities, err := ParseMetadata(data)
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if !entities[0].ValidUntil.IsZero() {
		t.Errorf("ValidUntil = %v, want zero", entities[0].ValidUntil)
	}
}

func TestParseMetadata_MalformedXML(t *testing.T) {
	if _, err := ParseMetadata([]byte("<EntityDescriptor")); err == nil {
		t.Error("malformed XML should fail")
	}
}

func TestParseMetadata_NoCertificates(t *testing.T) {
	data := []byte(`<EntityDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://idp.example.com">
  <IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://idp.example.com/sso"/>
  </IDPSSODescriptor>
</EntityDescriptor>`)
	if _, err := ParseMetadata(data); err == nil {
		t.Error("metadata without certificates should be rejected")
	}
}

func TestParseMetadata_BadCertificateData(t *testing.T) {
	data := []byte(`<EntityDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://idp.example.com">
  <IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <KeyDescriptor use="signing">
      <KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#">
        <X509Data><X509Certificate>!!!not-base64!!!</X509Certificate></X509Data>
      </KeyInfo>
    </KeyDescriptor>
  </IDPSSODescriptor>
</EntityDescriptor>`)
	if _, err := ParseMetadata(data); err == nil {
		t.Error("undecodable certificate data should be rejected")
	}
}

// Whitespace inside X509Certificate from pretty-printing must be tolerated.
func TestParseCertData_IgnoresWhitespace(t *testing.T) {
	pair := keys.Generate(t, "idp.example.com")
	b64 := base64.StdEncoding.EncodeToString(pair.Cert.Raw)
	wrapped := "\n  " + b64[:40] + "\n  " + b64[40:] + "\n"

	cert, err := parseCertData(wrapped)
	if err != nil {
		t.Fatalf("parseCertData: %v", err)
	}
	if domain.CertThumbprint(cert) != domain.CertThumbprint(pair.Cert) {
		t.Error("parsed certificate does not match")
	}
}
