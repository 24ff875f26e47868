// Package pending tracks issued request IDs awaiting a response.
package pending

import (
	"sync"
	"time"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// InMemoryStore keeps pending authentication requests in memory. Consume
// removes the entry under the same lock that reads it, so a request ID is
// honored at most once even under concurrent response delivery.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*domain.PendingRequest

	now func() time.Time
}

// StoreOption configures an InMemoryStore.
type StoreOption func(*InMemoryStore)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *InMemoryStore) { s.now = now }
}

// NewInMemoryStore creates an empty pending request store.
func NewInMemoryStore(opts ...StoreOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[string]*domain.PendingRequest),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store saves a pending request keyed by its request ID. Expired entries are
// purged opportunistically while the lock is held.
func (s *InMemoryStore) Store(pr *domain.PendingRequest) error {
	now := s.now()
	s.mu.Lock()
	for id, existing := range s.entries {
		if !now.Before(existing.ExpiresAt) {
			delete(s.entries, id)
		}
	}
	s.entries[pr.RequestID] = pr
	s.mu.Unlock()
	return nil
}

// Consume removes and returns the pending request for the ID. Returns false
// for unknown, expired, or already-consumed IDs.
func (s *InMemoryStore) Consume(requestID string) (*domain.PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.entries[requestID]
	if !ok {
		return nil, false
	}
	delete(s.entries, requestID)
	if !s.now().Before(pr.ExpiresAt) {
		return nil, false
	}
	return pr, true
}

// Len returns the number of tracked requests, expired entries included.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Ensure InMemoryStore implements ports.PendingRequestStore
var _ ports.PendingRequestStore = (*InMemoryStore)(nil)
