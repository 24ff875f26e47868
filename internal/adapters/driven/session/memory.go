// Package session provides session persistence and token encoding.
package session

import (
	"sync"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// InMemoryStore keeps sessions in memory with a per-user index so single
// logout can revoke every session a user holds without scanning the map.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	byUser   map[string]map[string]struct{}
}

// NewInMemoryStore creates an empty session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*domain.Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Put stores a session keyed by its ID.
func (s *InMemoryStore) Put(session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[session.ID]; ok && existing.UserID != session.UserID {
		s.unindex(existing.UserID, session.ID)
	}
	s.sessions[session.ID] = session
	ids, ok := s.byUser[session.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[session.UserID] = ids
	}
	ids[session.ID] = struct{}{}
	return nil
}

// Get retrieves a session by ID.
func (s *InMemoryStore) Get(sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a session. Deleting an absent ID is not an error.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(s.sessions, sessionID)
	s.unindex(session.UserID, sessionID)
	return nil
}

// DeleteAllForUser removes every session for the user and returns how many
// were removed.
func (s *InMemoryStore) DeleteAllForUser(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.byUser[userID]
	if !ok {
		return 0, nil
	}
	count := 0
	for id := range ids {
		if _, present := s.sessions[id]; present {
			delete(s.sessions, id)
			count++
		}
	}
	delete(s.byUser, userID)
	return count, nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// unindex removes a session ID from the per-user index. Caller holds the lock.
func (s *InMemoryStore) unindex(userID, sessionID string) {
	if ids, ok := s.byUser[userID]; ok {
		delete(ids, sessionID)
		if len(ids) == 0 {
			delete(s.byUser, userID)
		}
	}
}

// Ensure InMemoryStore implements ports.SessionStore
var _ ports.SessionStore = (*InMemoryStore)(nil)
