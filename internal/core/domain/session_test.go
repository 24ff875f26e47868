//go:build unit

package domain

import (
	"testing"
	"time"
)

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Hour)}

	if s.Expired(now) {
		t.Error("session before expiry should not be expired")
	}
	if !s.Expired(now.Add(time.Hour)) {
		t.Error("session at its exact expiry instant should be expired")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Error("session past expiry should be expired")
	}
}

func TestSession_BindingMatches(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		ctx     BindingContext
		want    bool
	}{
		{
			name:    "no bindings always match",
			session: Session{},
			ctx:     BindingContext{IP: "1.2.3.4", UserAgent: "curl"},
			want:    true,
		},
		{
			name:    "bound IP matches",
			session: Session{BoundIP: "1.2.3.4"},
			ctx:     BindingContext{IP: "1.2.3.4"},
			want:    true,
		},
		{
			name:    "bound IP mismatch",
			session: Session{BoundIP: "1.2.3.4"},
			ctx:     BindingContext{IP: "5.6.7.8"},
			want:    false,
		},
		{
			name:    "bound user agent mismatch",
			session: Session{BoundUserAgent: "Mozilla/5.0"},
			ctx:     BindingContext{UserAgent: "curl"},
			want:    false,
		},
		{
			name:    "both bindings must match",
			session: Session{BoundIP: "1.2.3.4", BoundUserAgent: "Mozilla/5.0"},
			ctx:     BindingContext{IP: "1.2.3.4", UserAgent: "Mozilla/5.0"},
			want:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.BindingMatches(tt.ctx); got != tt.want {
				t.Errorf("BindingMatches = %v, want %v", got, tt.want)
			}
		})
	}
}
