package domain

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"time"
)

// Endpoint purposes as they appear in SAML metadata role descriptors.
const (
	EndpointSingleSignOn      = "SingleSignOnService"
	EndpointAssertionConsumer = "AssertionConsumerService"
	EndpointSingleLogout      = "SingleLogoutService"
)

// SAML 2.0 binding URIs.
const (
	BindingHTTPRedirect = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	BindingHTTPPost     = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	BindingSOAP         = "urn:oasis:names:tc:SAML:2.0:bindings:SOAP"
)

// Certificate uses as declared in KeyDescriptor elements.
const (
	CertUseSigning    = "signing"
	CertUseEncryption = "encryption"
)

// ErrEntityNotFound is returned when an entity ID has no trust store entry.
var ErrEntityNotFound = errors.New("entity not found")

// ErrMetadataExpired is returned when a metadata document's validUntil has passed.
var ErrMetadataExpired = errors.New("metadata has expired")

// Endpoint is a single protocol endpoint published in entity metadata.
type Endpoint struct {
	// Purpose is the metadata role element name, e.g. EndpointSingleSignOn.
	Purpose string

	// Binding is the SAML binding URI for this endpoint.
	Binding string

	// Location is the endpoint URL.
	Location string
}

// EntityCertificate is a versioned certificate entry keyed by thumbprint.
// Keeping all currently-valid certificates per use enables zero-downtime
// rotation: verification tries every candidate rather than one fixed key.
type EntityCertificate struct {
	// Use is CertUseSigning or CertUseEncryption. An empty use in metadata
	// means the certificate serves both purposes.
	Use string

	// Thumbprint is the hex-encoded SHA-1 digest of the DER certificate.
	Thumbprint string

	Certificate *x509.Certificate
}

// Entity describes a known IdP or SP loaded from metadata.
// Entities are immutable once constructed; the trust store swaps the whole
// value on refresh so in-flight validations keep a consistent view.
type Entity struct {
	// EntityID is the unique URI identifying this entity.
	EntityID string

	// Endpoints lists the entity's published protocol endpoints.
	Endpoints []Endpoint

	// Certificates holds all certificate entries from the entity's
	// KeyDescriptor elements, keyed by thumbprint via EntityCertificate.
	Certificates []EntityCertificate

	// ValidUntil is the metadata expiry, zero if the document declares none.
	ValidUntil time.Time
}

// CertThumbprint computes the hex SHA-1 thumbprint of a certificate.
func CertThumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// CertificatesForUse returns all certificates usable for the given purpose
// that are inside their own validity window at the given instant.
// Certificates with no declared use count for every purpose.
func (e *Entity) CertificatesForUse(use string, now time.Time) []*x509.Certificate {
	var certs []*x509.Certificate
	for _, ec := range e.Certificates {
		if ec.Use != "" && ec.Use != use {
			continue
		}
		cert := ec.Certificate
		if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
			continue
		}
		certs = append(certs, cert)
	}
	return certs
}

// EndpointFor returns the location of the first endpoint matching purpose and
// binding, or empty string when the entity publishes none.
func (e *Entity) EndpointFor(purpose, binding string) string {
	for _, ep := range e.Endpoints {
		if ep.Purpose == purpose && ep.Binding == binding {
			return ep.Location
		}
	}
	return ""
}

// HasEndpoint reports whether location is one of the entity's endpoints for
// the given purpose, under any binding. Used for Destination checks.
func (e *Entity) HasEndpoint(purpose, location string) bool {
	for _, ep := range e.Endpoints {
		if ep.Purpose == purpose && ep.Location == location {
			return true
		}
	}
	return false
}

// Expired reports whether the entity's metadata validUntil has passed.
func (e *Entity) Expired(now time.Time) bool {
	return !e.ValidUntil.IsZero() && now.After(e.ValidUntil)
}

// TrustHealth reports the state of the trust store for monitoring.
type TrustHealth struct {
	// EntityCount is the number of entities currently loaded.
	EntityCount int

	// LastRefreshTime is the time of the most recent successful refresh.
	LastRefreshTime time.Time

	// LastError is the error from the most recent failed refresh, nil if
	// the last refresh succeeded.
	LastError error
}
