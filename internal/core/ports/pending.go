package ports

import "github.com/philiph/saml-engine/internal/core/domain"

// PendingRequestStore tracks issued AuthnRequest IDs until the matching
// response arrives or the entry times out. Implementations must be safe for
// concurrent use; Consume must be atomic so an ID is honored at most once.
type PendingRequestStore interface {
	// Store saves a pending request keyed by its request ID.
	Store(pr *domain.PendingRequest) error

	// Consume removes and returns the pending request for the ID.
	// Returns false for unknown, expired, or already-consumed IDs.
	Consume(requestID string) (*domain.PendingRequest, bool)
}
