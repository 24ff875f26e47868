package samlengine

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewMessageID generates an unguessable SAML message or assertion ID.
// XML IDs must not start with a digit, so a fixed prefix is applied.
func NewMessageID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return "id-" + hex.EncodeToString(buf)
}

// NewSessionID generates a cryptographically random session identifier.
func NewSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// NewCSRFToken generates a per-session token for state-changing requests.
func NewCSRFToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// NewRelayKey generates an opaque relay-state key. Relay state is stored
// server-side and only the key crosses the wire.
func NewRelayKey() string {
	return uuid.NewString()
}
