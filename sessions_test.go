//go:build unit

package samlengine

import (
	"sync"
	"testing"
	"time"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// capturingAudit records audit events for inspection.
type capturingAudit struct {
	mu     sync.Mutex
	events []ports.AuditEvent
}

func (c *capturingAudit) Record(event ports.AuditEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

var _ ports.AuditSink = (*capturingAudit)(nil)

func sessionAssertion() *domain.Assertion {
	return &domain.Assertion{
		ID:     "id-assert-1",
		Issuer: domain.Issuer{Value: "https://idp.example.com"},
		Subject: &domain.Subject{
			NameID: &domain.NameID{Format: domain.NameIDFormatEmail, Value: "alice@example.com"},
		},
		AuthnStatement: &domain.AuthnStatement{SessionIndex: "idx-7"},
	}
}

func requireAppErrorCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	appErr, ok := err.(*AppError)
	if !ok {
		t.Fatalf("error type = %T (%v), want *AppError", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("error code = %s, want %s", appErr.Code, code)
	}
}

func TestSessionManager_Create(t *testing.T) {
	now := time.Now()
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{TTL: time.Hour},
		WithSessionClock(fixedClock(now)))

	attrs := domain.ExtractAttributes(&domain.AttributeStatement{
		Attributes: []domain.Attribute{{Name: "mail", Values: []string{"alice@example.com"}}},
	})

	session, err := sm.Create(sessionAssertion(), attrs, domain.BindingContext{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.ID == "" {
		t.Error("session ID should be set")
	}
	if session.UserID != "alice@example.com" {
		t.Errorf("UserID = %q", session.UserID)
	}
	if session.NameIDFormat != domain.NameIDFormatEmail {
		t.Errorf("NameIDFormat = %q", session.NameIDFormat)
	}
	if session.IdPEntityID != "https://idp.example.com" {
		t.Errorf("IdPEntityID = %q", session.IdPEntityID)
	}
	if session.IdPSessionIndex != "idx-7" {
		t.Errorf("IdPSessionIndex = %q", session.IdPSessionIndex)
	}
	if session.CSRFToken == "" {
		t.Error("CSRF token should be set")
	}
	if !session.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, now.Add(time.Hour))
	}
	if got := session.Attributes["mail"]; len(got) != 1 || got[0] != "alice@example.com" {
		t.Errorf("Attributes[mail] = %v", got)
	}
}

func TestSessionManager_Create_AppliesAttributeMappings(t *testing.T) {
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{
		TTL: time.Hour,
		AttributeMappings: []domain.AttributeMapping{
			{Source: "mail", Target: "email", Transform: "lowercase"},
			{Source: "department", Target: "dept", Default: "unassigned"},
		},
	})

	attrs := domain.ExtractAttributes(&domain.AttributeStatement{
		Attributes: []domain.Attribute{{Name: "mail", Values: []string{"Alice@Example.COM"}}},
	})
	session, err := sm.Create(sessionAssertion(), attrs, domain.BindingContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got := session.Attributes["email"]; len(got) != 1 || got[0] != "alice@example.com" {
		t.Errorf("email = %v", got)
	}
	if got := session.Attributes["dept"]; len(got) != 1 || got[0] != "unassigned" {
		t.Errorf("dept = %v", got)
	}
	if _, ok := session.Attributes["mail"]; ok {
		t.Error("raw attribute names should not survive a mapping table")
	}
}

func TestSessionManager_Create_UniqueIDs(t *testing.T) {
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, domain.BindingContext{})
		if err != nil {
			t.Fatal(err)
		}
		if seen[session.ID] {
			t.Fatalf("duplicate session ID %q", session.ID)
		}
		seen[session.ID] = true
	}
}

func TestSessionManager_Get(t *testing.T) {
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{TTL: time.Hour})

	created, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, domain.BindingContext{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := sm.Get(created.ID, domain.BindingContext{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != created.UserID {
		t.Errorf("UserID = %q", got.UserID)
	}
}

func TestSessionManager_Get_Unknown(t *testing.T) {
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{})
	_, err := sm.Get("nope", domain.BindingContext{})
	requireAppErrorCode(t, err, ErrCodeSessionInvalid)
}

func TestSessionManager_Get_ExpiredIsDeleted(t *testing.T) {
	now := time.Now()
	store := NewInMemorySessionStore()
	clock := now
	sm := NewSessionManager(store, SessionPolicy{TTL: time.Hour},
		WithSessionClock(func() time.Time { return clock }))

	created, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, domain.BindingContext{})
	if err != nil {
		t.Fatal(err)
	}

	clock = now.Add(2 * time.Hour)
	_, err = sm.Get(created.ID, domain.BindingContext{})
	requireAppErrorCode(t, err, ErrCodeSessionExpired)

	// The expired session is gone from the store, not just hidden.
	if _, err := store.Get(created.ID); err == nil {
		t.Error("expired session should have been deleted")
	}
}

func TestSessionManager_Get_BindingMismatchInvalidates(t *testing.T) {
	store := NewInMemorySessionStore()
	audit := &capturingAudit{}
	sm := NewSessionManager(store, SessionPolicy{TTL: time.Hour, BindIP: true},
		WithSessionAudit(audit))

	created, err := sm.Create(sessionAssertion(), &domain.AttributeValues{},
		domain.BindingContext{IP: "203.0.113.7"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = sm.Get(created.ID, domain.BindingContext{IP: "198.51.100.9"})
	requireAppErrorCode(t, err, ErrCodeSessionBindingMismatch)

	if _, err := store.Get(created.ID); err == nil {
		t.Error("session should be destroyed after a binding mismatch")
	}
	if len(audit.events) != 1 || audit.events[0].Code != ErrCodeSessionBindingMismatch {
		t.Errorf("audit events = %+v, want one binding mismatch event", audit.events)
	}
}

func TestSessionManager_Get_BindingMatchSucceeds(t *testing.T) {
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{TTL: time.Hour, BindIP: true, BindUserAgent: true})

	bindCtx := domain.BindingContext{IP: "203.0.113.7", UserAgent: "test-agent/1.0"}
	created, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, bindCtx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Get(created.ID, bindCtx); err != nil {
		t.Errorf("Get with matching binding: %v", err)
	}
}

func TestSessionManager_Touch_SlidingExpiry(t *testing.T) {
	now := time.Now()
	clock := now
	store := NewInMemorySessionStore()
	sm := NewSessionManager(store, SessionPolicy{TTL: time.Hour, SlidingExpiry: true},
		WithSessionClock(func() time.Time { return clock }))

	created, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, domain.BindingContext{})
	if err != nil {
		t.Fatal(err)
	}

	clock = now.Add(30 * time.Minute)
	if err := sm.Touch(created.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ExpiresAt.Equal(clock.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want extended to %v", got.ExpiresAt, clock.Add(time.Hour))
	}
	if !got.LastAccessed.Equal(clock) {
		t.Errorf("LastAccessed = %v, want %v", got.LastAccessed, clock)
	}
}

func TestSessionManager_Touch_FixedExpiry(t *testing.T) {
	now := time.Now()
	clock := now
	store := NewInMemorySessionStore()
	sm := NewSessionManager(store, SessionPolicy{TTL: time.Hour},
		WithSessionClock(func() time.Time { return clock }))

	created, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, domain.BindingContext{})
	if err != nil {
		t.Fatal(err)
	}
	originalExpiry := created.ExpiresAt

	clock = now.Add(30 * time.Minute)
	if err := sm.Touch(created.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	got, _ := store.Get(created.ID)
	if !got.ExpiresAt.Equal(originalExpiry) {
		t.Errorf("ExpiresAt = %v, want unchanged %v", got.ExpiresAt, originalExpiry)
	}
}

func TestSessionManager_Touch_Expired(t *testing.T) {
	now := time.Now()
	clock := now
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{TTL: time.Hour},
		WithSessionClock(func() time.Time { return clock }))

	created, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, domain.BindingContext{})
	if err != nil {
		t.Fatal(err)
	}

	clock = now.Add(2 * time.Hour)
	err = sm.Touch(created.ID)
	requireAppErrorCode(t, err, ErrCodeSessionExpired)
}

func TestSessionManager_Invalidate(t *testing.T) {
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{TTL: time.Hour})

	created, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, domain.BindingContext{})
	if err != nil {
		t.Fatal(err)
	}
	if err := sm.Invalidate(created.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := sm.Get(created.ID, domain.BindingContext{}); err == nil {
		t.Error("invalidated session should not resolve")
	}

	// Invalidating an unknown session is not an error.
	if err := sm.Invalidate("nope"); err != nil {
		t.Errorf("Invalidate unknown: %v", err)
	}
}

func TestSessionManager_InvalidateAll(t *testing.T) {
	sm := NewSessionManager(NewInMemorySessionStore(), SessionPolicy{TTL: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := sm.Create(sessionAssertion(), &domain.AttributeValues{}, domain.BindingContext{}); err != nil {
			t.Fatal(err)
		}
	}

	count, err := sm.InvalidateAll("alice@example.com")
	if err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	count, err = sm.InvalidateAll("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("second InvalidateAll count = %d, want 0", count)
	}
}
