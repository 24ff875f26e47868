//go:build unit

package crypto

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/testfixtures/keys"
)

func writePEM(t *testing.T, path string, blocks ...*pem.Block) {
	t.Helper()
	var data []byte
	for _, b := range blocks {
		data = append(data, pem.EncodeToMemory(b)...)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestValidateCertificate(t *testing.T) {
	valid := keys.Generate(t, "sp.example.com")
	expired := keys.GenerateExpired(t, "sp.example.com")

	if err := ValidateCertificate(valid.Cert, domain.CertUseSigning); err != nil {
		t.Errorf("valid signing cert rejected: %v", err)
	}
	if err := ValidateCertificate(valid.Cert, domain.CertUseEncryption); err != nil {
		t.Errorf("valid encryption cert rejected: %v", err)
	}
	if err := ValidateCertificate(expired.Cert, domain.CertUseSigning); err == nil {
		t.Error("expired cert must be rejected")
	}
}

func TestLoadCertificates_MultiplePEMBlocks(t *testing.T) {
	a := keys.Generate(t, "cert-a")
	b := keys.Generate(t, "cert-b")

	path := filepath.Join(t.TempDir(), "certs.pem")
	writePEM(t, path,
		&pem.Block{Type: "CERTIFICATE", Bytes: a.Cert.Raw},
		&pem.Block{Type: "CERTIFICATE", Bytes: b.Cert.Raw},
	)

	certs, err := LoadCertificates(path)
	if err != nil {
		t.Fatalf("LoadCertificates: %v", err)
	}
	if len(certs) != 2 {
		t.Fatalf("loaded %d certs, want 2", len(certs))
	}
	if certs[0].Subject.CommonName != "cert-a" || certs[1].Subject.CommonName != "cert-b" {
		t.Error("certificates loaded out of order")
	}
}

func TestLoadCertificates_NoCertificates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(path, []byte("no pem here"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCertificates(path); err == nil {
		t.Error("LoadCertificates should fail when the file holds no certificates")
	}
}

func TestLoadPrivateKey_PKCS1(t *testing.T) {
	pair := keys.Generate(t, "sp.example.com")
	path := filepath.Join(t.TempDir(), "key.pem")
	writePEM(t, path, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(pair.Key)})

	key, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
	if key.N.Cmp(pair.Key.N) != 0 {
		t.Error("loaded key does not match")
	}
}

func TestLoadPrivateKey_PKCS8(t *testing.T) {
	pair := keys.Generate(t, "sp.example.com")
	der, err := x509.MarshalPKCS8PrivateKey(pair.Key)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.pem")
	writePEM(t, path, &pem.Block{Type: "PRIVATE KEY", Bytes: der})

	key, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
	if key.N.Cmp(pair.Key.N) != 0 {
		t.Error("loaded key does not match")
	}
}

func TestLoadPrivateKey_MissingFile(t *testing.T) {
	if _, err := LoadPrivateKey(filepath.Join(t.TempDir(), "absent.pem")); err == nil {
		t.Error("LoadPrivateKey should fail for a missing file")
	}
}
