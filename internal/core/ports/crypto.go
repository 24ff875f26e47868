package ports

import "crypto/x509"

// MessageSigner signs SAML XML messages.
// This is a port interface - implementations are adapters.
type MessageSigner interface {
	// Sign adds an enveloped XML signature to the document and returns
	// the signed XML bytes.
	Sign(data []byte) ([]byte, error)
}

// MessageVerifier verifies XML signatures on SAML messages.
//
// The interface returns validated bytes (not just a boolean) following
// goxmldsig practice to prevent signature wrapping attacks: callers must use
// the returned bytes for further processing. Verification fails closed - any
// parse error or malformed signature is an error, never implicit trust.
type MessageVerifier interface {
	// Verify validates the XML signature on the document against the given
	// trust anchors and returns the validated XML bytes. All candidate
	// certificates are tried, enabling zero-downtime key rotation.
	Verify(data []byte, certs []*x509.Certificate) ([]byte, error)
}

// AssertionEncrypter encrypts assertion XML for a recipient.
type AssertionEncrypter interface {
	// Encrypt produces an EncryptedData envelope: a fresh random symmetric
	// key encrypts the payload, and the key itself is encrypted under the
	// recipient's public key with OAEP padding.
	Encrypt(plaintext []byte, recipient *x509.Certificate) ([]byte, error)
}

// AssertionDecrypter decrypts EncryptedData envelopes addressed to this entity.
type AssertionDecrypter interface {
	// Decrypt unwraps an EncryptedData envelope and returns the plaintext
	// assertion XML.
	Decrypt(envelope []byte) ([]byte, error)
}
