package trust

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/crewjam/saml"

	"github.com/philiph/saml-engine/internal/core/domain"
)

// rawMetadataValidity extracts validUntil before full parsing.
// Works for both EntitiesDescriptor and EntityDescriptor.
type rawMetadataValidity struct {
	ValidUntil string `xml:"validUntil,attr"`
}

// ParseMetadata parses SAML metadata XML, supporting both single
// EntityDescriptor and aggregate EntitiesDescriptor formats.
// Returns domain.ErrMetadataExpired if validUntil has passed.
func ParseMetadata(data []byte) ([]*domain.Entity, error) {
	validUntil, err := extractAndValidateExpiry(data)
	if err != nil {
		return nil, err
	}

	// Try EntitiesDescriptor first (aggregate metadata)
	var entities saml.EntitiesDescriptor
	if err := xml.Unmarshal(data, &entities); err == nil && len(entities.EntityDescriptors) > 0 {
		out := make([]*domain.Entity, 0, len(entities.EntityDescriptors))
		for i := range entities.EntityDescriptors {
			entity, err := entityFromDescriptor(&entities.EntityDescriptors[i], validUntil)
			if err != nil {
				return nil, err
			}
			out = append(out, entity)
		}
		return out, nil
	}

	// Fall back to single EntityDescriptor
	var ed saml.EntityDescriptor
	if err := xml.Unmarshal(data, &ed); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	entity, err := entityFromDescriptor(&ed, validUntil)
	if err != nil {
		return nil, err
	}
	return []*domain.Entity{entity}, nil
}

// extractAndValidateExpiry extracts validUntil from metadata and validates it.
func extractAndValidateExpiry(data []byte) (time.Time, error) {
	var validity rawMetadataValidity
	if err := xml.Unmarshal(data, &validity); err != nil {
		// Let the main parser report the malformed document.
		return time.Time{}, nil
	}
	if validity.ValidUntil == "" {
		return time.Time{}, nil
	}
	validUntil, err := time.Parse(time.RFC3339, validity.ValidUntil)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid validUntil format %q: %w", validity.ValidUntil, err)
	}
	// Marshalers without omitempty on validUntil emit the zero timestamp
	// when no expiry was set. That is an absent expiry, not a past one.
	if validUntil.IsZero() {
		return time.Time{}, nil
	}
	if time.Now().After(validUntil) {
		return time.Time{}, fmt.Errorf("%w: validUntil %s is in the past", domain.ErrMetadataExpired, validity.ValidUntil)
	}
	return validUntil, nil
}

// entityFromDescriptor converts a crewjam EntityDescriptor into the immutable
// domain entity, collecting endpoints and versioned certificates from every
// published role.
func entityFromDescriptor(ed *saml.EntityDescriptor, validUntil time.Time) (*domain.Entity, error) {
	if ed.EntityID == "" {
		return nil, fmt.Errorf("missing entityID attribute")
	}

	entity := &domain.Entity{
		EntityID:   ed.EntityID,
		ValidUntil: validUntil,
	}

	for i := range ed.IDPSSODescriptors {
		idp := &ed.IDPSSODescriptors[i]
		for _, sso := range idp.SingleSignOnServices {
			entity.Endpoints = append(entity.Endpoints, domain.Endpoint{
				Purpose:  domain.EndpointSingleSignOn,
				Binding:  sso.Binding,
				Location: sso.Location,
			})
		}
		for _, slo := range idp.SingleLogoutServices {
			entity.Endpoints = append(entity.Endpoints, domain.Endpoint{
				Purpose:  domain.EndpointSingleLogout,
				Binding:  slo.Binding,
				Location: slo.Location,
			})
		}
		if err := appendCertificates(entity, idp.KeyDescriptors); err != nil {
			return nil, err
		}
	}

	for i := range ed.SPSSODescriptors {
		sp := &ed.SPSSODescriptors[i]
		for _, acs := range sp.AssertionConsumerServices {
			entity.Endpoints = append(entity.Endpoints, domain.Endpoint{
				Purpose:  domain.EndpointAssertionConsumer,
				Binding:  acs.Binding,
				Location: acs.Location,
			})
		}
		for _, slo := range sp.SingleLogoutServices {
			entity.Endpoints = append(entity.Endpoints, domain.Endpoint{
				Purpose:  domain.EndpointSingleLogout,
				Binding:  slo.Binding,
				Location: slo.Location,
			})
		}
		if err := appendCertificates(entity, sp.KeyDescriptors); err != nil {
			return nil, err
		}
	}

	if len(entity.Certificates) == 0 {
		return nil, fmt.Errorf("entity %q publishes no certificates", ed.EntityID)
	}

	return entity, nil
}

// appendCertificates decodes KeyDescriptor certificates into versioned
// thumbprint-keyed entries, skipping duplicates within a role.
func appendCertificates(entity *domain.Entity, descriptors []saml.KeyDescriptor) error {
	seen := make(map[string]bool, len(entity.Certificates))
	for _, ec := range entity.Certificates {
		seen[ec.Use+":"+ec.Thumbprint] = true
	}

	for _, kd := range descriptors {
		for _, raw := range kd.KeyInfo.X509Data.X509Certificates {
			cert, err := parseCertData(raw.Data)
			if err != nil {
				return fmt.Errorf("entity %q: %w", entity.EntityID, err)
			}
			thumbprint := domain.CertThumbprint(cert)
			key := kd.Use + ":" + thumbprint
			if seen[key] {
				continue
			}
			seen[key] = true
			entity.Certificates = append(entity.Certificates, domain.EntityCertificate{
				Use:         kd.Use,
				Thumbprint:  thumbprint,
				Certificate: cert,
			})
		}
	}
	return nil
}

// parseCertData decodes a base64 DER certificate from a KeyDescriptor.
// Metadata certificates often carry whitespace from XML pretty-printing.
func parseCertData(data string) (*x509.Certificate, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, data)

	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return cert, nil
}
