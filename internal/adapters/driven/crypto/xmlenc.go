package crypto

import (
	"crypto/rsa"
	"crypto/x509"

	"github.com/beevik/etree"
	"github.com/crewjam/saml/xmlenc"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// XMLEncEncrypter encrypts assertion XML for a recipient using XML Encryption:
// a fresh random AES key and IV encrypt the payload, and the AES key is
// wrapped under the recipient's RSA public key with OAEP padding.
type XMLEncEncrypter struct{}

// NewXMLEncEncrypter creates a stateless assertion encrypter.
func NewXMLEncEncrypter() *XMLEncEncrypter {
	return &XMLEncEncrypter{}
}

// Encrypt produces the EncryptedData envelope for the plaintext assertion.
func (e *XMLEncEncrypter) Encrypt(plaintext []byte, recipient *x509.Certificate) ([]byte, error) {
	if err := ValidateCertificate(recipient, domain.CertUseEncryption); err != nil {
		return nil, err
	}

	encryptor := xmlenc.OAEP()
	encryptor.BlockCipher = xmlenc.AES128CBC
	encryptor.DigestMethod = &xmlenc.SHA256

	// xmlenc's RSA encryptor expects the *x509.Certificate, not raw DER.
	encryptedDataEl, err := encryptor.Encrypt(recipient, plaintext, nil)
	if err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeCryptoFailure,
			Message: "assertion encryption failed",
			Cause:   err,
		}
	}
	encryptedDataEl.CreateAttr("Type", "http://www.w3.org/2001/04/xmlenc#Element")

	doc := etree.NewDocument()
	doc.SetRoot(encryptedDataEl)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeCryptoFailure,
			Message: "failed to serialize encrypted assertion",
			Cause:   err,
		}
	}
	return out, nil
}

// XMLEncDecrypter decrypts EncryptedData envelopes with the SP's private key.
type XMLEncDecrypter struct {
	privateKey *rsa.PrivateKey
}

// NewXMLEncDecrypter creates a decrypter for the given private key.
func NewXMLEncDecrypter(privateKey *rsa.PrivateKey) *XMLEncDecrypter {
	return &XMLEncDecrypter{privateKey: privateKey}
}

// Decrypt unwraps an EncryptedData envelope and returns the plaintext.
// Fails closed on any structural or cryptographic error.
func (d *XMLEncDecrypter) Decrypt(envelope []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelope); err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeCryptoFailure,
			Message: "failed to parse encrypted assertion",
			Cause:   err,
		}
	}

	el := doc.Root()
	if el == nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeCryptoFailure,
			Message: "empty encrypted assertion",
		}
	}
	// Accept either the EncryptedAssertion wrapper or bare EncryptedData.
	if el.Tag == "EncryptedAssertion" {
		inner := el.FindElement("./EncryptedData")
		if inner == nil {
			return nil, &domain.AppError{
				Code:    domain.ErrCodeCryptoFailure,
				Message: "EncryptedAssertion has no EncryptedData",
			}
		}
		el = inner
	}

	plaintext, err := xmlenc.Decrypt(d.privateKey, el)
	if err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeCryptoFailure,
			Message: "assertion decryption failed",
			Cause:   err,
		}
	}
	return plaintext, nil
}

// Ensure implementations satisfy interfaces
var _ ports.AssertionEncrypter = (*XMLEncEncrypter)(nil)
var _ ports.AssertionDecrypter = (*XMLEncDecrypter)(nil)
