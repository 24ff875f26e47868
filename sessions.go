package samlengine

import (
	"time"

	"go.uber.org/zap"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// DefaultSessionTTL is the session lifetime applied when none is configured.
const DefaultSessionTTL = 8 * time.Hour

// SessionPolicy controls session lifetime and binding enforcement.
type SessionPolicy struct {
	// TTL is the session lifetime. Zero means DefaultSessionTTL.
	TTL time.Duration

	// SlidingExpiry lets Touch extend the session by TTL from last access.
	SlidingExpiry bool

	// BindIP pins sessions to the creating client address.
	BindIP bool

	// BindUserAgent pins sessions to the creating user agent.
	BindUserAgent bool

	// AttributeMappings, when set, projects assertion attributes through the
	// mapping table instead of storing them under their raw names.
	AttributeMappings []domain.AttributeMapping
}

// SessionManager owns the session lifecycle: creation from a validated
// assertion, policy-checked lookup, sliding expiry, and invalidation.
// Expiry is checked explicitly on every read; a binding mismatch is a
// security violation that destroys the session rather than just failing
// the lookup.
type SessionManager struct {
	store   ports.SessionStore
	policy  SessionPolicy
	metrics ports.MetricsRecorder
	audit   ports.AuditSink
	logger  *zap.Logger
	now     func() time.Time
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionMetrics attaches a metrics recorder.
func WithSessionMetrics(m ports.MetricsRecorder) SessionManagerOption {
	return func(sm *SessionManager) { sm.metrics = m }
}

// WithSessionAudit attaches an audit sink for binding violations.
func WithSessionAudit(a ports.AuditSink) SessionManagerOption {
	return func(sm *SessionManager) { sm.audit = a }
}

// WithSessionLogger attaches a logger.
func WithSessionLogger(logger *zap.Logger) SessionManagerOption {
	return func(sm *SessionManager) { sm.logger = logger }
}

// WithSessionClock overrides the time source. Used by tests.
func WithSessionClock(now func() time.Time) SessionManagerOption {
	return func(sm *SessionManager) { sm.now = now }
}

// NewSessionManager creates a session manager over the given store.
func NewSessionManager(store ports.SessionStore, policy SessionPolicy, opts ...SessionManagerOption) *SessionManager {
	if policy.TTL <= 0 {
		policy.TTL = DefaultSessionTTL
	}
	sm := &SessionManager{
		store:  store,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Create builds a session from a validated assertion and stores it.
// The session ID and CSRF token come from a cryptographically secure source.
func (sm *SessionManager) Create(assertion *domain.Assertion, attrs *domain.AttributeValues, bindCtx domain.BindingContext) (*domain.Session, error) {
	now := sm.now()
	sessionAttrs := attrs.Map()
	if len(sm.policy.AttributeMappings) > 0 {
		sessionAttrs = domain.ApplyMappings(attrs, sm.policy.AttributeMappings)
	}
	session := &domain.Session{
		ID:           NewSessionID(),
		UserID:       assertion.Subject.NameID.Value,
		NameIDFormat: assertion.Subject.NameID.Format,
		Attributes:   sessionAttrs,
		IdPEntityID:  assertion.Issuer.Value,
		CSRFToken:    NewCSRFToken(),
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(sm.policy.TTL),
	}
	if stmt := assertion.AuthnStatement; stmt != nil {
		session.IdPSessionIndex = stmt.SessionIndex
	}
	if sm.policy.BindIP {
		session.BoundIP = bindCtx.IP
	}
	if sm.policy.BindUserAgent {
		session.BoundUserAgent = bindCtx.UserAgent
	}

	if err := sm.store.Put(session); err != nil {
		return nil, domain.ServiceError("failed to store session")
	}
	if sm.metrics != nil {
		sm.metrics.RecordSessionCreated()
	}
	if sm.logger != nil {
		sm.logger.Info("session created",
			zap.String("user_id", session.UserID),
			zap.String("idp_entity_id", session.IdPEntityID),
			zap.Time("expires_at", session.ExpiresAt),
		)
	}
	return session, nil
}

// Get retrieves a session, enforcing expiry and binding policy. An expired
// session is deleted and reported as expired; a binding mismatch invalidates
// the session and raises an audit event.
func (sm *SessionManager) Get(sessionID string, bindCtx domain.BindingContext) (*domain.Session, error) {
	session, err := sm.store.Get(sessionID)
	if err != nil {
		sm.recordValidation(false)
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSessionInvalid,
			Message: "session not found",
			Cause:   err,
		}
	}

	if session.Expired(sm.now()) {
		_ = sm.store.Delete(sessionID)
		sm.recordValidation(false)
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSessionExpired,
			Message: "session has expired",
		}
	}

	if !session.BindingMatches(bindCtx) {
		_ = sm.store.Delete(sessionID)
		sm.recordValidation(false)
		if sm.audit != nil {
			sm.audit.Record(ports.AuditEvent{
				Code:       domain.ErrCodeSessionBindingMismatch,
				Message:    "session binding mismatch, session invalidated",
				SubjectID:  session.UserID,
				RemoteAddr: bindCtx.IP,
			})
		}
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSessionBindingMismatch,
			Message: "session binding mismatch",
		}
	}

	sm.recordValidation(true)
	return session, nil
}

// Touch updates last-accessed and, when the policy allows, extends the
// sliding expiry from now.
func (sm *SessionManager) Touch(sessionID string) error {
	session, err := sm.store.Get(sessionID)
	if err != nil {
		return &domain.AppError{
			Code:    domain.ErrCodeSessionInvalid,
			Message: "session not found",
			Cause:   err,
		}
	}
	now := sm.now()
	if session.Expired(now) {
		_ = sm.store.Delete(sessionID)
		return &domain.AppError{
			Code:    domain.ErrCodeSessionExpired,
			Message: "session has expired",
		}
	}

	updated := *session
	updated.LastAccessed = now
	if sm.policy.SlidingExpiry {
		updated.ExpiresAt = now.Add(sm.policy.TTL)
	}
	return sm.store.Put(&updated)
}

// Invalidate destroys a single session. Unknown IDs are not an error.
func (sm *SessionManager) Invalidate(sessionID string) error {
	return sm.store.Delete(sessionID)
}

// InvalidateAll destroys every session held by the user. Used by Single
// Logout. Returns the number of sessions removed.
func (sm *SessionManager) InvalidateAll(userID string) (int, error) {
	count, err := sm.store.DeleteAllForUser(userID)
	if err != nil {
		return 0, domain.ServiceError("failed to invalidate user sessions")
	}
	if sm.logger != nil && count > 0 {
		sm.logger.Info("all user sessions invalidated",
			zap.String("user_id", userID),
			zap.Int("count", count),
		)
	}
	return count, nil
}

func (sm *SessionManager) recordValidation(valid bool) {
	if sm.metrics != nil {
		sm.metrics.RecordSessionValidation(valid)
	}
}
