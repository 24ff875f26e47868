// Command testidp runs a minimal SAML Identity Provider for local
// development, backed by crewjam/samlidp. It is not for production use.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/xml"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/crewjam/saml/samlidp"
)

func main() {
	listenAddr := flag.String("listen", ":8443", "listen address")
	baseURLStr := flag.String("base-url", "http://localhost:8443", "externally visible base URL")
	username := flag.String("user", "alice", "test user name")
	password := flag.String("password", "password", "test user password")
	spMetadata := flag.String("sp-metadata", "", "path to a service provider metadata file to register")
	flag.Parse()

	baseURL, err := url.Parse(*baseURLStr)
	if err != nil {
		log.Fatalf("parse base URL: %v", err)
	}

	key, cert, err := selfSignedCert(baseURL.Hostname())
	if err != nil {
		log.Fatalf("generate certificate: %v", err)
	}

	store := &samlidp.MemoryStore{}
	idpServer, err := samlidp.New(samlidp.Options{
		URL:         *baseURL,
		Key:         key,
		Certificate: cert,
		Store:       store,
	})
	if err != nil {
		log.Fatalf("create IdP: %v", err)
	}

	user := samlidp.User{
		Name:              *username,
		PlaintextPassword: password,
		Email:             *username + "@example.com",
		CommonName:        *username,
		GivenName:         *username,
		Surname:           "Developer",
	}
	if err := store.Put("/users/"+*username, user); err != nil {
		log.Fatalf("add user: %v", err)
	}

	if *spMetadata != "" {
		data, err := os.ReadFile(*spMetadata)
		if err != nil {
			log.Fatalf("read SP metadata: %v", err)
		}
		service := samlidp.Service{Name: "sp"}
		if err := xml.Unmarshal(data, &service.Metadata); err != nil {
			log.Fatalf("parse SP metadata: %v", err)
		}
		if err := store.Put("/services/sp", service); err != nil {
			log.Fatalf("register SP: %v", err)
		}
	}

	fmt.Printf("test IdP listening on %s\n", *listenAddr)
	fmt.Printf("  metadata: %s/metadata\n", baseURL)
	fmt.Printf("  user:     %s / %s\n", *username, *password)
	log.Fatal(http.ListenAndServe(*listenAddr, idpServer))
}

func selfSignedCert(hostname string) (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   hostname,
			Organization: []string{"Development"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		DNSNames:              []string{hostname},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}
