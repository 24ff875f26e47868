package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/philiph/saml-engine/internal/core/domain"
)

// MinRSAKeyBits is the minimum accepted RSA modulus size.
const MinRSAKeyBits = 2048

// ValidateCertificate checks a certificate for use in the given operation:
// validity window, key-usage bit, and minimum key strength.
func ValidateCertificate(cert *x509.Certificate, use string) error {
	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return &domain.AppError{
			Code:    domain.ErrCodeCryptoFailure,
			Message: fmt.Sprintf("certificate %q is outside its validity window", cert.Subject.String()),
		}
	}

	// KeyUsage of zero means the extension is absent; only enforce the bit
	// when the certificate declares usages.
	if cert.KeyUsage != 0 {
		switch use {
		case domain.CertUseSigning:
			if cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
				return &domain.AppError{
					Code:    domain.ErrCodeCryptoFailure,
					Message: fmt.Sprintf("certificate %q lacks the digitalSignature key usage", cert.Subject.String()),
				}
			}
		case domain.CertUseEncryption:
			if cert.KeyUsage&(x509.KeyUsageKeyEncipherment|x509.KeyUsageDataEncipherment) == 0 {
				return &domain.AppError{
					Code:    domain.ErrCodeCryptoFailure,
					Message: fmt.Sprintf("certificate %q lacks an encipherment key usage", cert.Subject.String()),
				}
			}
		}
	}

	if rsaKey, ok := cert.PublicKey.(*rsa.PublicKey); ok {
		if rsaKey.N.BitLen() < MinRSAKeyBits {
			return &domain.AppError{
				Code:    domain.ErrCodeCryptoFailure,
				Message: fmt.Sprintf("certificate %q has a %d-bit RSA key, below the %d-bit minimum", cert.Subject.String(), rsaKey.N.BitLen(), MinRSAKeyBits),
			}
		}
	}

	return nil
}

// LoadCertificates loads X.509 certificates from a PEM file.
// Supports multiple certificates in a single file for rotation scenarios.
func LoadCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate file: %w", err)
	}

	var certs []*x509.Certificate
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		data = rest
	}

	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}

	return certs, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	// Try PKCS8 first (modern format), then PKCS1 (legacy RSA format)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return rsaKey, nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not RSA")
	}

	return rsaKey, nil
}
