// Package replay provides the in-memory replay guard.
package replay

import (
	"sync"
	"time"

	"github.com/philiph/saml-engine/internal/core/ports"
)

// InMemoryReplayGuard records consumed assertion and message IDs until their
// validity window closes. Check-then-insert runs under a single lock so two
// concurrent presentations of the same ID can never both succeed.
type InMemoryReplayGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time

	now func() time.Time

	stopCh chan struct{}
	closed bool
}

// ReplayOption configures an InMemoryReplayGuard.
type ReplayOption func(*InMemoryReplayGuard)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ReplayOption {
	return func(g *InMemoryReplayGuard) { g.now = now }
}

// NewInMemoryReplayGuard creates a replay guard that purges expired entries
// lazily on each call.
func NewInMemoryReplayGuard(opts ...ReplayOption) *InMemoryReplayGuard {
	g := &InMemoryReplayGuard{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewInMemoryReplayGuardWithCleanup additionally sweeps expired entries in the
// background at the given interval, bounding memory between lookups.
// Call Close() to stop the goroutine.
func NewInMemoryReplayGuardWithCleanup(interval time.Duration, opts ...ReplayOption) *InMemoryReplayGuard {
	g := NewInMemoryReplayGuard(opts...)
	g.stopCh = make(chan struct{})
	go g.cleanupLoop(interval)
	return g
}

// CheckAndMark returns false if id was already recorded within its window;
// otherwise it records id until expiry and returns true. An entry whose
// window has closed is treated as absent.
func (g *InMemoryReplayGuard) CheckAndMark(id string, expiry time.Time) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[id]; ok && now.Before(existing) {
		return false
	}
	g.entries[id] = expiry
	return true
}

// Len returns the number of tracked identifiers, expired entries included.
func (g *InMemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// purgeExpired drops entries whose window has closed.
func (g *InMemoryReplayGuard) purgeExpired() {
	now := g.now()
	g.mu.Lock()
	for id, expiry := range g.entries {
		if !now.Before(expiry) {
			delete(g.entries, id)
		}
	}
	g.mu.Unlock()
}

func (g *InMemoryReplayGuard) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.purgeExpired()
		case <-g.stopCh:
			return
		}
	}
}

// Close stops the background cleanup goroutine if running.
// Safe to call multiple times.
func (g *InMemoryReplayGuard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopCh != nil && !g.closed {
		close(g.stopCh)
		g.closed = true
	}
	return nil
}

// Ensure InMemoryReplayGuard implements ports.ReplayGuard
var _ ports.ReplayGuard = (*InMemoryReplayGuard)(nil)
