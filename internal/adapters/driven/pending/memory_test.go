//go:build unit

package pending

import (
	"sync"
	"testing"
	"time"

	"github.com/philiph/saml-engine/internal/core/domain"
)

func newRequest(id string, ttl time.Duration) *domain.PendingRequest {
	now := time.Now()
	return &domain.PendingRequest{
		RequestID:   id,
		RelayState:  "relay-" + id,
		ResourceURL: "https://sp.example.com/protected",
		IdPEntityID: "https://idp.example.com",
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func TestConsume_ReturnsStoredRequest(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Store(newRequest("id-1", time.Minute)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	pr, ok := store.Consume("id-1")
	if !ok {
		t.Fatal("Consume should find the stored request")
	}
	if pr.RelayState != "relay-id-1" {
		t.Errorf("RelayState = %q", pr.RelayState)
	}
	if pr.ResourceURL != "https://sp.example.com/protected" {
		t.Errorf("ResourceURL = %q", pr.ResourceURL)
	}
}

func TestConsume_AtMostOnce(t *testing.T) {
	store := NewInMemoryStore()
	store.Store(newRequest("id-1", time.Minute))

	if _, ok := store.Consume("id-1"); !ok {
		t.Fatal("first Consume should succeed")
	}
	if _, ok := store.Consume("id-1"); ok {
		t.Error("second Consume of the same ID must fail")
	}
}

func TestConsume_UnknownID(t *testing.T) {
	store := NewInMemoryStore()
	if _, ok := store.Consume("never-stored"); ok {
		t.Error("Consume of an unknown ID must fail")
	}
}

func TestConsume_ExpiredRequest(t *testing.T) {
	current := time.Now()
	store := NewInMemoryStore(WithClock(func() time.Time { return current }))

	pr := newRequest("id-1", time.Minute)
	store.Store(pr)

	current = current.Add(2 * time.Minute)
	if _, ok := store.Consume("id-1"); ok {
		t.Error("Consume of an expired request must fail")
	}
}

func TestStore_PurgesExpiredEntries(t *testing.T) {
	current := time.Now()
	store := NewInMemoryStore(WithClock(func() time.Time { return current }))

	store.Store(newRequest("old-1", time.Minute))
	store.Store(newRequest("old-2", time.Minute))

	current = current.Add(2 * time.Minute)
	store.Store(newRequest("fresh", time.Minute))

	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1 after expired entries purged", store.Len())
	}
}

func TestConsume_ConcurrentDelivery(t *testing.T) {
	store := NewInMemoryStore()
	store.Store(newRequest("contested", time.Minute))

	const goroutines = 20
	var wg sync.WaitGroup
	results := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := store.Consume("contested")
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("%d consumers succeeded, want exactly 1", wins)
	}
}
