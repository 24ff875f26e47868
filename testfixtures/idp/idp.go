// Package idp provides a crewjam/samlidp-backed Identity Provider for
// integration testing against a real third-party implementation.
package idp

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/crewjam/saml/samlidp"
)

// TestIdP is an in-process SAML Identity Provider backed by crewjam/samlidp.
type TestIdP struct {
	t      testing.TB
	server *httptest.Server
	idp    *samlidp.Server
	store  *samlidp.MemoryStore
}

// New creates a test IdP with a fresh self-signed certificate.
// Call Close() when done.
func New(t testing.TB) *TestIdP {
	t.Helper()

	key, cert, err := selfSignedCert()
	if err != nil {
		t.Fatalf("generate IdP certificate: %v", err)
	}

	store := &samlidp.MemoryStore{}

	// The server URL is only known after the listener starts, so the
	// handler indirects through the struct.
	var tidp *TestIdP
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tidp != nil && tidp.idp != nil {
			tidp.idp.ServeHTTP(w, r)
		}
	}))

	baseURL, err := url.Parse(ts.URL)
	if err != nil {
		ts.Close()
		t.Fatalf("parse test server URL: %v", err)
	}

	idpServer, err := samlidp.New(samlidp.Options{
		URL:         *baseURL,
		Key:         key,
		Certificate: cert,
		Store:       store,
	})
	if err != nil {
		ts.Close()
		t.Fatalf("create IdP server: %v", err)
	}

	tidp = &TestIdP{t: t, server: ts, idp: idpServer, store: store}
	return tidp
}

// Close shuts down the test IdP.
func (i *TestIdP) Close() {
	if i.server != nil {
		i.server.Close()
	}
}

// BaseURL returns the IdP's base URL.
func (i *TestIdP) BaseURL() string {
	return i.server.URL
}

// EntityID returns the IdP's entity ID (its metadata URL).
func (i *TestIdP) EntityID() string {
	return i.server.URL + "/metadata"
}

// SSOURL returns the IdP's single sign-on endpoint.
func (i *TestIdP) SSOURL() string {
	return i.server.URL + "/sso"
}

// MetadataXML fetches the IdP's metadata document.
func (i *TestIdP) MetadataXML() []byte {
	i.t.Helper()

	resp, err := http.Get(i.server.URL + "/metadata")
	if err != nil {
		i.t.Fatalf("fetch IdP metadata: %v", err)
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		i.t.Fatalf("read IdP metadata: %v", err)
	}
	return buf.Bytes()
}

// AddUser creates a test user.
func (i *TestIdP) AddUser(username, password string) {
	i.t.Helper()

	user := samlidp.User{
		Name:              username,
		PlaintextPassword: &password,
		Email:             username + "@example.com",
		CommonName:        username,
		GivenName:         username,
		Surname:           "Test",
	}
	if err := i.store.Put("/users/"+username, user); err != nil {
		i.t.Fatalf("add user %s: %v", username, err)
	}
}

// RegisterSP registers a service provider from its raw metadata XML.
// samlidp keys services by a single path segment, so the store name is a
// slug derived from the entity ID; request matching uses the metadata's
// entityID regardless of the store name.
func (i *TestIdP) RegisterSP(entityID string, metadata []byte) {
	i.t.Helper()

	req, err := http.NewRequest(http.MethodPut, i.server.URL+"/services/"+serviceSlug(entityID), bytes.NewReader(metadata))
	if err != nil {
		i.t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		i.t.Fatalf("register SP: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusCreated {
		i.t.Fatalf("register SP: status %d", resp.StatusCode)
	}
}

// serviceSlug flattens an entity ID into a single URL path segment.
func serviceSlug(entityID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '-'
	}, entityID)
}

// CertificatePEM returns the IdP certificate in PEM format.
func (i *TestIdP) CertificatePEM() []byte {
	cert := i.idp.IDP.Certificate
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func selfSignedCert() (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Test IdP",
			Organization: []string{"Test"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}
	return key, cert, nil
}
