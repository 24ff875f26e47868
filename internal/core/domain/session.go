package domain

import "time"

// Session holds authenticated user state.
// Sessions are owned by the session manager: they are created from a
// validated assertion, mutated only through the manager's API, and destroyed
// on expiry, explicit logout, or a security-policy violation.
type Session struct {
	// ID is the cryptographically random session identifier.
	ID string

	// UserID is the SAML NameID (subject identifier).
	UserID string

	// NameIDFormat is the format of the NameID (needed for LogoutRequest).
	NameIDFormat string

	// Attributes contains SAML attributes from the assertion.
	Attributes map[string][]string

	// IdPEntityID identifies which IdP authenticated the user.
	IdPEntityID string

	// IdPSessionIndex is the IdP session index (needed for LogoutRequest).
	IdPSessionIndex string

	// CSRFToken is a per-session random token for state-changing requests.
	CSRFToken string

	// BoundIP, when set, pins the session to the client address observed at
	// creation. Lookups from another address invalidate the session.
	BoundIP string

	// BoundUserAgent, when set, pins the session to the creating user agent.
	BoundUserAgent string

	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the session has passed its expiry.
// Checked explicitly on every read so correctness does not depend on the
// backing store's own eviction timing.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// BindingContext is the client context a lookup presents for comparison
// against the session's bindings.
type BindingContext struct {
	IP        string
	UserAgent string
}

// BindingMatches reports whether the presented context satisfies the
// session's optional IP and user-agent bindings.
func (s *Session) BindingMatches(ctx BindingContext) bool {
	if s.BoundIP != "" && s.BoundIP != ctx.IP {
		return false
	}
	if s.BoundUserAgent != "" && s.BoundUserAgent != ctx.UserAgent {
		return false
	}
	return true
}
