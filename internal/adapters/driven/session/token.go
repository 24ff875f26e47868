package session

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCodec encodes session references as signed JWT tokens for transport
// in a cookie. Only the opaque session ID travels to the client; the session
// state itself stays server-side in the SessionStore.
type TokenCodec struct {
	privateKey *rsa.PrivateKey
}

// tokenClaims defines the JWT claims structure for session references.
type tokenClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// NewTokenCodec creates a codec signing with the given RSA key.
func NewTokenCodec(privateKey *rsa.PrivateKey) *TokenCodec {
	return &TokenCodec{privateKey: privateKey}
}

// Encode produces a signed token carrying the session ID.
func (c *TokenCodec) Encode(sessionID string, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}

// Decode validates a token and returns the session ID it carries.
func (c *TokenCodec) Decode(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return &c.privateKey.PublicKey, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return "", errors.New("invalid session token")
	}
	return claims.SessionID, nil
}
