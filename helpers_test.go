//go:build unit

package samlengine

import (
	"context"
	"sync"
	"time"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
	"github.com/philiph/saml-engine/testfixtures/keys"
)

// stubTrust is a fixed in-memory trust store for tests.
type stubTrust struct {
	mu       sync.Mutex
	entities map[string]*domain.Entity
}

func newStubTrust(entities ...*domain.Entity) *stubTrust {
	s := &stubTrust{entities: make(map[string]*domain.Entity)}
	for _, e := range entities {
		s.entities[e.EntityID] = e
	}
	return s
}

func (s *stubTrust) GetEntity(ctx context.Context, entityID string) (*domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return e, nil
}

func (s *stubTrust) Register(metadataXML []byte) error { return nil }

func (s *stubTrust) Refresh(ctx context.Context, entityID string) error { return nil }

func (s *stubTrust) Health() domain.TrustHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.TrustHealth{EntityCount: len(s.entities)}
}

func (s *stubTrust) Close() error { return nil }

var _ ports.TrustStore = (*stubTrust)(nil)

// idpEntity builds a trust entry for an IdP signing with pair.
func idpEntity(entityID string, pair *keys.Pair) *domain.Entity {
	return &domain.Entity{
		EntityID: entityID,
		Endpoints: []domain.Endpoint{
			{Purpose: domain.EndpointSingleSignOn, Binding: domain.BindingHTTPRedirect, Location: entityID + "/sso"},
			{Purpose: domain.EndpointSingleLogout, Binding: domain.BindingHTTPRedirect, Location: entityID + "/slo"},
		},
		Certificates: []domain.EntityCertificate{{
			Use:         domain.CertUseSigning,
			Thumbprint:  domain.CertThumbprint(pair.Cert),
			Certificate: pair.Cert,
		}},
	}
}

// spEntity builds a trust entry for an SP with a POST ACS and an encryption
// certificate.
func spEntity(entityID, acsURL string, pair *keys.Pair) *domain.Entity {
	return &domain.Entity{
		EntityID: entityID,
		Endpoints: []domain.Endpoint{
			{Purpose: domain.EndpointAssertionConsumer, Binding: domain.BindingHTTPPost, Location: acsURL},
			{Purpose: domain.EndpointSingleLogout, Binding: domain.BindingHTTPRedirect, Location: entityID + "/slo"},
		},
		Certificates: []domain.EntityCertificate{{
			Use:         domain.CertUseEncryption,
			Thumbprint:  domain.CertThumbprint(pair.Cert),
			Certificate: pair.Cert,
		}},
	}
}

// fixedClock returns a clock function frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
