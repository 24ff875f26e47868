package ports

import (
	"context"

	"github.com/philiph/saml-engine/internal/core/domain"
)

// TrustStore is the port interface for entity metadata lookup.
// Implementations hold process-wide trust state behind explicit
// init/refresh/close lifecycle with internal synchronization.
type TrustStore interface {
	// GetEntity returns the entity with the given ID.
	// Returns domain.ErrEntityNotFound when the ID is unknown.
	// A cache miss for a registered remote source triggers a synchronous
	// fetch; concurrent misses for the same entity are coalesced.
	GetEntity(ctx context.Context, entityID string) (*domain.Entity, error)

	// Register admits a static metadata document after validating its
	// structure and certificate presence.
	Register(metadataXML []byte) error

	// Refresh re-fetches the entity's metadata and atomically swaps it in.
	// Old data remains valid for in-flight validations.
	Refresh(ctx context.Context, entityID string) error

	// Health returns the trust store state for monitoring.
	Health() domain.TrustHealth

	// Close stops any background refresh. Idempotent.
	Close() error
}
