package trust

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// Fetcher retrieves a metadata document. A nil result with nil error means
// the document is unchanged since the last fetch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// entry is one cached entity. Entities are immutable; refresh swaps the
// whole pointer so in-flight validations keep a consistent view.
type entry struct {
	entity    *domain.Entity
	fetchedAt time.Time
	sourceURL string // empty for statically registered documents
}

// Store is the cached trust/metadata store. Remote sources are fetched with
// bounded retry and TTL caching; concurrent refreshes for the same entity
// are coalesced through a singleflight group.
type Store struct {
	cacheTTL     time.Duration
	fetcher      Fetcher
	retries      int
	retryBackoff time.Duration
	logger       *zap.Logger
	metrics      ports.MetricsRecorder

	flight singleflight.Group

	mu              sync.RWMutex
	entries         map[string]*entry
	lastRefreshTime time.Time
	lastError       error

	stopCh chan struct{}
	closed bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger attaches a logger for refresh events.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m ports.MetricsRecorder) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithRetry sets the bounded retry policy for remote fetches.
func WithRetry(retries int, backoff time.Duration) StoreOption {
	return func(s *Store) {
		s.retries = retries
		s.retryBackoff = backoff
	}
}

// NewStore creates a trust store with the given cache TTL.
// A nil fetcher restricts the store to statically registered documents.
func NewStore(cacheTTL time.Duration, fetcher Fetcher, opts ...StoreOption) *Store {
	s := &Store{
		cacheTTL:     cacheTTL,
		fetcher:      fetcher,
		retries:      2,
		retryBackoff: 500 * time.Millisecond,
		entries:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreWithRefresh creates a store that additionally re-fetches all
// remote sources in the background at refreshInterval.
// Call Close() to stop the background goroutine.
func NewStoreWithRefresh(cacheTTL time.Duration, fetcher Fetcher, refreshInterval time.Duration, opts ...StoreOption) *Store {
	s := NewStore(cacheTTL, fetcher, opts...)
	s.stopCh = make(chan struct{})
	go s.refreshLoop(refreshInterval)
	return s
}

// Register admits a static metadata document after validating structure and
// certificate presence. Each contained entity replaces any previous entry
// wholesale.
func (s *Store) Register(metadataXML []byte) error {
	entities, err := ParseMetadata(metadataXML)
	if err != nil {
		return &domain.AppError{
			Code:    domain.ErrCodeMalformedMessage,
			Message: "metadata document rejected",
			Cause:   err,
		}
	}

	now := time.Now()
	s.mu.Lock()
	for _, e := range entities {
		s.entries[e.EntityID] = &entry{entity: e, fetchedAt: now}
	}
	s.mu.Unlock()
	return nil
}

// AddRemoteSource associates an entity ID with a metadata URL. The document
// is fetched lazily on first lookup and re-fetched when the cache TTL lapses.
func (s *Store) AddRemoteSource(entityID, url string) {
	s.mu.Lock()
	if _, ok := s.entries[entityID]; !ok {
		s.entries[entityID] = &entry{sourceURL: url}
	} else {
		s.entries[entityID].sourceURL = url
	}
	s.mu.Unlock()
}

// GetEntity returns the entity for the ID, fetching or refreshing remote
// metadata as needed. Stale cached data past its TTL triggers a synchronous
// coalesced refresh; fetch failure within the staleness tolerance serves the
// cached entity rather than failing the caller.
func (s *Store) GetEntity(ctx context.Context, entityID string) (*domain.Entity, error) {
	s.mu.RLock()
	ent, ok := s.entries[entityID]
	var cached *domain.Entity
	var sourceURL string
	var fetchedAt time.Time
	if ok {
		cached = ent.entity
		sourceURL = ent.sourceURL
		fetchedAt = ent.fetchedAt
	}
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrEntityNotFound
	}

	if cached != nil && (sourceURL == "" || time.Since(fetchedAt) < s.cacheTTL) {
		return cached, nil
	}

	// Cache miss or TTL lapsed for a remote source.
	if err := s.Refresh(ctx, entityID); err != nil {
		s.mu.RLock()
		cached := s.entries[entityID]
		s.mu.RUnlock()
		if cached != nil && cached.entity != nil && !cached.entity.Expired(time.Now()) {
			// Stale but structurally valid data within tolerance.
			return cached.entity, nil
		}
		return nil, domain.MetadataUnavailableError(entityID, err)
	}

	s.mu.RLock()
	refreshed := s.entries[entityID]
	s.mu.RUnlock()
	if refreshed == nil || refreshed.entity == nil {
		return nil, domain.ErrEntityNotFound
	}
	return refreshed.entity, nil
}

// Refresh re-fetches the entity's metadata and atomically swaps it in.
// Concurrent refreshes for the same entity share a single fetch.
func (s *Store) Refresh(ctx context.Context, entityID string) error {
	s.mu.RLock()
	ent, ok := s.entries[entityID]
	var sourceURL string
	if ok {
		sourceURL = ent.sourceURL
	}
	s.mu.RUnlock()
	if !ok {
		return domain.ErrEntityNotFound
	}
	if sourceURL == "" {
		// Static registration has nothing to re-fetch.
		return nil
	}
	if s.fetcher == nil {
		return fmt.Errorf("no fetcher configured for %q", entityID)
	}

	_, err, _ := s.flight.Do(entityID, func() (interface{}, error) {
		return nil, s.doRefresh(ctx, entityID, sourceURL)
	})
	return err
}

// doRefresh performs the bounded-retry fetch, parse and swap for one entity.
func (s *Store) doRefresh(ctx context.Context, entityID, url string) error {
	var data []byte
	var err error
	for attempt := 0; ; attempt++ {
		data, err = s.fetcher.Fetch(ctx, url)
		if err == nil {
			break
		}
		if attempt >= s.retries || ctx.Err() != nil {
			s.markRefreshFailed(entityID, err)
			return err
		}
		select {
		case <-time.After(s.retryBackoff << attempt):
		case <-ctx.Done():
			s.markRefreshFailed(entityID, ctx.Err())
			return ctx.Err()
		}
	}

	now := time.Now()
	if data == nil {
		// Not modified: the cached document still stands.
		s.mu.Lock()
		if ent, ok := s.entries[entityID]; ok && ent.entity != nil {
			ent.fetchedAt = now
			s.lastRefreshTime = now
			s.lastError = nil
		}
		s.mu.Unlock()
		return nil
	}

	entities, err := ParseMetadata(data)
	if err != nil {
		s.markRefreshFailed(entityID, err)
		return err
	}

	var fresh *domain.Entity
	for _, e := range entities {
		if e.EntityID == entityID {
			fresh = e
			break
		}
	}
	if fresh == nil {
		err := fmt.Errorf("document from %s does not describe entity %q", url, entityID)
		s.markRefreshFailed(entityID, err)
		return err
	}

	s.mu.Lock()
	s.entries[entityID] = &entry{entity: fresh, fetchedAt: now, sourceURL: url}
	s.lastRefreshTime = now
	s.lastError = nil
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordMetadataRefresh(entityID, true)
	}
	if s.logger != nil {
		s.logger.Info("metadata refreshed",
			zap.String("entity_id", entityID),
			zap.Int("certificates", len(fresh.Certificates)),
		)
	}
	return nil
}

// markRefreshFailed records the failure, preserving cached data.
func (s *Store) markRefreshFailed(entityID string, err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordMetadataRefresh(entityID, false)
	}
	if s.logger != nil {
		s.logger.Warn("metadata refresh failed",
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// Health returns the trust store state for monitoring.
func (s *Store) Health() domain.TrustHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, ent := range s.entries {
		if ent.entity != nil {
			count++
		}
	}
	return domain.TrustHealth{
		EntityCount:     count,
		LastRefreshTime: s.lastRefreshTime,
		LastError:       s.lastError,
	}
}

// refreshLoop periodically re-fetches every remote source.
func (s *Store) refreshLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			var ids []string
			for id, ent := range s.entries {
				if ent.sourceURL != "" {
					ids = append(ids, id)
				}
			}
			s.mu.RUnlock()
			for _, id := range ids {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				_ = s.Refresh(ctx, id)
				cancel()
			}
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the background refresh goroutine if running.
// Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil && !s.closed {
		close(s.stopCh)
		s.closed = true
	}
	return nil
}

// Ensure Store implements ports.TrustStore
var _ ports.TrustStore = (*Store)(nil)
