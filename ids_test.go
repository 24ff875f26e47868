//go:build unit

package samlengine

import (
	"strings"
	"testing"
)

func TestNewMessageID(t *testing.T) {
	id := NewMessageID()
	if !strings.HasPrefix(id, "id-") {
		t.Errorf("ID = %q, want id- prefix", id)
	}
	// 20 random bytes hex-encoded after the prefix.
	if len(id) != 3+40 {
		t.Errorf("len = %d", len(id))
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewMessageID()
		if seen[id] {
			t.Fatalf("duplicate message ID %q", id)
		}
		seen[id] = true
	}
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	if id == "" {
		t.Fatal("empty session ID")
	}
	if strings.ContainsAny(id, "+/=") {
		t.Errorf("session ID %q is not URL-safe", id)
	}
	if id == NewSessionID() {
		t.Error("session IDs should not repeat")
	}
}

func TestNewCSRFToken(t *testing.T) {
	token := NewCSRFToken()
	if token == "" {
		t.Fatal("empty CSRF token")
	}
	if token == NewCSRFToken() {
		t.Error("CSRF tokens should not repeat")
	}
}

func TestNewRelayKey(t *testing.T) {
	key := NewRelayKey()
	if key == "" {
		t.Fatal("empty relay key")
	}
	if key == NewRelayKey() {
		t.Error("relay keys should not repeat")
	}
}
