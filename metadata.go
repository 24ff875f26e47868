package samlengine

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/crewjam/saml"

	"github.com/philiph/saml-engine/internal/core/domain"
)

// GenerateSPMetadata creates the SP metadata document peers use to register
// this entity: entity ID, ACS endpoint, optional SLO endpoint, and the
// signing/encryption certificates.
func GenerateSPMetadata(entityID, acsURL, sloURL string, certs []*x509.Certificate) ([]byte, error) {
	if entityID == "" || acsURL == "" {
		return nil, domain.ConfigError("entity ID and ACS URL are required for metadata generation")
	}
	if len(certs) == 0 {
		return nil, domain.ConfigError("at least one certificate is required for metadata generation")
	}

	var keyDescriptors []saml.KeyDescriptor
	for _, use := range []string{domain.CertUseSigning, domain.CertUseEncryption} {
		for _, cert := range certs {
			keyDescriptors = append(keyDescriptors, saml.KeyDescriptor{
				Use: use,
				KeyInfo: saml.KeyInfo{
					X509Data: saml.X509Data{
						X509Certificates: []saml.X509Certificate{
							{Data: base64.StdEncoding.EncodeToString(cert.Raw)},
						},
					},
				},
			})
		}
	}

	authnRequestsSigned := true
	wantAssertionsSigned := true
	spDescriptor := saml.SPSSODescriptor{
		SSODescriptor: saml.SSODescriptor{
			RoleDescriptor: saml.RoleDescriptor{
				ProtocolSupportEnumeration: domain.NamespaceProtocol,
				KeyDescriptors:             keyDescriptors,
			},
		},
		AuthnRequestsSigned:  &authnRequestsSigned,
		WantAssertionsSigned: &wantAssertionsSigned,
		AssertionConsumerServices: []saml.IndexedEndpoint{{
			Binding:  domain.BindingHTTPPost,
			Location: acsURL,
			Index:    1,
		}},
	}
	if sloURL != "" {
		spDescriptor.SingleLogoutServices = []saml.Endpoint{{
			Binding:  domain.BindingHTTPRedirect,
			Location: sloURL,
		}}
	}

	ed := saml.EntityDescriptor{
		EntityID:         entityID,
		SPSSODescriptors: []saml.SPSSODescriptor{spDescriptor},
	}

	out, err := xml.MarshalIndent(ed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal SP metadata: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
