package ports

import (
	"errors"

	"github.com/philiph/saml-engine/internal/core/domain"
)

// ErrSessionNotFound is returned when a session cannot be found or is invalid.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the port interface for session persistence.
// The session manager layers expiry and binding policy on top; stores only
// need atomic per-ID create/get/delete plus a per-user index for SLO.
// Backing implementations may be an in-memory map or a distributed
// key-value store.
type SessionStore interface {
	// Put stores a session keyed by its ID.
	Put(session *domain.Session) error

	// Get retrieves a session by ID. Returns ErrSessionNotFound if absent.
	// Stores with native TTL support may also evict expired entries, but
	// callers never rely on that.
	Get(sessionID string) (*domain.Session, error)

	// Delete removes a session. Deleting an absent ID is not an error.
	Delete(sessionID string) error

	// DeleteAllForUser removes every session for the user and returns how
	// many were removed.
	DeleteAllForUser(userID string) (int, error)
}
