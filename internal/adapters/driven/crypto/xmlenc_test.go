//go:build unit

package crypto

import (
	"bytes"
	"testing"

	"github.com/philiph/saml-engine/testfixtures/keys"
)

const sampleAssertion = `<Assertion xmlns="urn:oasis:names:tc:SAML:2.0:assertion" ID="id-assert-1" Version="2.0"><Issuer>https://idp.example.com</Issuer></Assertion>`

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	pair := keys.Generate(t, "sp.example.com")
	encrypter := NewXMLEncEncrypter()
	decrypter := NewXMLEncDecrypter(pair.Key)

	envelope, err := encrypter.Encrypt([]byte(sampleAssertion), pair.Cert)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(envelope, []byte("id-assert-1")) {
		t.Fatal("ciphertext must not contain the plaintext")
	}
	if !bytes.Contains(envelope, []byte("EncryptedData")) {
		t.Fatal("envelope should be an EncryptedData structure")
	}

	plaintext, err := decrypter.Decrypt(envelope)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Contains(plaintext, []byte("id-assert-1")) {
		t.Error("decrypted bytes should contain the original assertion")
	}
}

func TestDecrypt_AcceptsEncryptedAssertionWrapper(t *testing.T) {
	pair := keys.Generate(t, "sp.example.com")
	encrypter := NewXMLEncEncrypter()
	decrypter := NewXMLEncDecrypter(pair.Key)

	envelope, err := encrypter.Encrypt([]byte(sampleAssertion), pair.Cert)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	wrapped := append([]byte(`<EncryptedAssertion xmlns="urn:oasis:names:tc:SAML:2.0:assertion">`), envelope...)
	wrapped = append(wrapped, []byte(`</EncryptedAssertion>`)...)

	plaintext, err := decrypter.Decrypt(wrapped)
	if err != nil {
		t.Fatalf("Decrypt wrapped: %v", err)
	}
	if !bytes.Contains(plaintext, []byte("id-assert-1")) {
		t.Error("decrypted bytes should contain the original assertion")
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	recipient := keys.Generate(t, "sp.example.com")
	other := keys.Generate(t, "other.example.com")
	encrypter := NewXMLEncEncrypter()
	decrypter := NewXMLEncDecrypter(other.Key)

	envelope, err := encrypter.Encrypt([]byte(sampleAssertion), recipient.Cert)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := decrypter.Decrypt(envelope); err == nil {
		t.Error("Decrypt with the wrong key must fail")
	}
}

func TestEncrypt_RejectsExpiredCertificate(t *testing.T) {
	pair := keys.GenerateExpired(t, "sp.example.com")
	encrypter := NewXMLEncEncrypter()

	if _, err := encrypter.Encrypt([]byte(sampleAssertion), pair.Cert); err == nil {
		t.Error("Encrypt must reject an expired recipient certificate")
	}
}

func TestDecrypt_MalformedInput(t *testing.T) {
	pair := keys.Generate(t, "sp.example.com")
	decrypter := NewXMLEncDecrypter(pair.Key)

	if _, err := decrypter.Decrypt([]byte("not xml")); err == nil {
		t.Error("Decrypt should reject non-XML input")
	}
	if _, err := decrypter.Decrypt([]byte(`<EncryptedAssertion xmlns="urn:oasis:names:tc:SAML:2.0:assertion"></EncryptedAssertion>`)); err == nil {
		t.Error("Decrypt should reject a wrapper with no EncryptedData")
	}
}
