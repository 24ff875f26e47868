package samlengine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// FlowState is a position in the authentication state machine.
type FlowState string

const (
	StateUnauthenticated            FlowState = "unauthenticated"
	StateAwaitingIdPResponse        FlowState = "awaiting_idp_response"
	StateAuthenticated              FlowState = "authenticated"
	StateAwaitingLogoutConfirmation FlowState = "awaiting_logout_confirmation"
	StateLoggedOut                  FlowState = "logged_out"
)

// DefaultPendingRequestTTL bounds how long an issued AuthnRequest is honored.
const DefaultPendingRequestTTL = 10 * time.Minute

// ErrAuthenticationFailed is the generic user-facing failure. The specific
// validation kind is preserved in logs and audit events for operators, never
// shown to the user.
var ErrAuthenticationFailed = domain.AuthError("authentication failed, please retry", nil)

// LoginResult is the outcome of initiating a login.
type LoginResult struct {
	// RedirectURL sends the user agent to the IdP.
	RedirectURL string

	// RequestID identifies the pending request until its response arrives.
	RequestID string

	State FlowState
}

// CallbackResult is the outcome of processing an IdP response.
type CallbackResult struct {
	Session *domain.Session

	// ResourceURL is the originally requested resource, empty for
	// IdP-initiated responses.
	ResourceURL string

	State FlowState
}

// LogoutResult is the outcome of a logout step.
type LogoutResult struct {
	// RedirectURL carries the logout message to the peer, empty when the
	// exchange is already complete.
	RedirectURL string

	State FlowState
}

// FlowConfig tunes the orchestrator.
type FlowConfig struct {
	// AllowIdPInitiated accepts unsolicited responses with no pending
	// request. Disabled by default; enabling it skips the request-ID match
	// but never any validation category.
	AllowIdPInitiated bool

	// PendingRequestTTL bounds the login attempt. Zero means
	// DefaultPendingRequestTTL.
	PendingRequestTTL time.Duration
}

// Flow drives the authentication and logout state machines over the protocol
// ports: Unauthenticated to AwaitingIdPResponse to Authenticated, and
// Authenticated to AwaitingLogoutConfirmation to LoggedOut.
//
// Flow depends on the protocol only through its interfaces, so further
// protocol variants slot in without touching the orchestration.
type Flow struct {
	protocol ports.AuthenticationProtocol
	logout   ports.LogoutProtocol
	pending  ports.PendingRequestStore
	sessions *SessionManager
	cfg      FlowConfig
	metrics  ports.MetricsRecorder
	audit    ports.AuditSink
	logger   *zap.Logger
	now      func() time.Time

	// mu guards pendingLogouts: logout request ID to session ID, consumed
	// when the confirmation arrives.
	mu             sync.Mutex
	pendingLogouts map[string]pendingLogout
}

type pendingLogout struct {
	sessionID string
	expiresAt time.Time
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithFlowMetrics attaches a metrics recorder.
func WithFlowMetrics(m ports.MetricsRecorder) FlowOption {
	return func(f *Flow) { f.metrics = m }
}

// WithFlowAudit attaches an audit sink for security-relevant failures.
func WithFlowAudit(a ports.AuditSink) FlowOption {
	return func(f *Flow) { f.audit = a }
}

// WithFlowLogger attaches a logger.
func WithFlowLogger(logger *zap.Logger) FlowOption {
	return func(f *Flow) { f.logger = logger }
}

// WithFlowClock overrides the time source. Used by tests.
func WithFlowClock(now func() time.Time) FlowOption {
	return func(f *Flow) { f.now = now }
}

// NewFlow creates the orchestrator. The logout protocol may be nil when the
// deployment never processes inbound logout messages.
func NewFlow(protocol ports.AuthenticationProtocol, logout ports.LogoutProtocol, pending ports.PendingRequestStore, sessions *SessionManager, cfg FlowConfig, opts ...FlowOption) *Flow {
	if cfg.PendingRequestTTL <= 0 {
		cfg.PendingRequestTTL = DefaultPendingRequestTTL
	}
	f := &Flow{
		protocol:       protocol,
		logout:         logout,
		pending:        pending,
		sessions:       sessions,
		cfg:            cfg,
		now:            time.Now,
		pendingLogouts: make(map[string]pendingLogout),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InitiateLogin starts an SP-initiated flow for a protected resource: builds
// the AuthnRequest, records the pending request, and returns the redirect.
func (f *Flow) InitiateLogin(ctx context.Context, idpEntityID, resourceURL string) (*LoginResult, error) {
	relayKey := NewRelayKey()
	login, err := f.protocol.BuildRequest(ctx, idpEntityID, relayKey)
	if err != nil {
		return nil, err
	}

	now := f.now()
	pr := &domain.PendingRequest{
		RequestID:   login.RequestID,
		RelayState:  relayKey,
		ResourceURL: resourceURL,
		IdPEntityID: idpEntityID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(f.cfg.PendingRequestTTL),
	}
	if err := f.pending.Store(pr); err != nil {
		return nil, domain.ServiceError("failed to record pending request")
	}

	if f.logger != nil {
		f.logger.Debug("login initiated",
			zap.String("idp_entity_id", idpEntityID),
			zap.String("request_id", login.RequestID),
		)
	}
	return &LoginResult{
		RedirectURL: login.RedirectURL,
		RequestID:   login.RequestID,
		State:       StateAwaitingIdPResponse,
	}, nil
}

// HandleCallback processes a raw IdP response: full validation, at-most-once
// pending-request consumption, and session creation. All failures surface as
// the generic ErrAuthenticationFailed; the specific kinds go to logs and,
// for security events, the audit sink.
func (f *Flow) HandleCallback(ctx context.Context, raw []byte, relayState string, bindCtx domain.BindingContext) (*CallbackResult, error) {
	validated, err := f.protocol.ValidateResponse(ctx, raw)
	if err != nil {
		f.recordAuthFailure("", err, bindCtx)
		return nil, ErrAuthenticationFailed
	}

	idpEntityID := validated.Assertion.Issuer.Value
	resourceURL := ""

	if validated.InResponseTo == "" {
		if !f.cfg.AllowIdPInitiated {
			f.recordAuthFailure(idpEntityID, &domain.AppError{
				Code:    domain.ErrCodeUnknownRequestID,
				Message: "unsolicited response rejected by policy",
			}, bindCtx)
			return nil, ErrAuthenticationFailed
		}
	} else {
		pr, ok := f.pending.Consume(validated.InResponseTo)
		if !ok {
			f.recordAuthFailure(idpEntityID, &domain.AppError{
				Code:    domain.ErrCodeUnknownRequestID,
				Message: "response references no pending request",
			}, bindCtx)
			return nil, ErrAuthenticationFailed
		}
		if pr.IdPEntityID != idpEntityID || (relayState != "" && pr.RelayState != relayState) {
			f.recordAuthFailure(idpEntityID, &domain.AppError{
				Code:    domain.ErrCodeUnknownRequestID,
				Message: "response does not match the pending request",
			}, bindCtx)
			return nil, ErrAuthenticationFailed
		}
		resourceURL = pr.ResourceURL
	}

	session, err := f.sessions.Create(validated.Assertion, validated.Attributes, bindCtx)
	if err != nil {
		f.recordAuthFailure(idpEntityID, err, bindCtx)
		return nil, ErrAuthenticationFailed
	}

	if f.metrics != nil {
		f.metrics.RecordAuthAttempt(idpEntityID, true)
	}
	if f.logger != nil {
		f.logger.Info("authentication succeeded",
			zap.String("idp_entity_id", idpEntityID),
			zap.String("user_id", session.UserID),
		)
	}
	return &CallbackResult{
		Session:     session,
		ResourceURL: resourceURL,
		State:       StateAuthenticated,
	}, nil
}

// InitiateLogout starts SP-initiated Single Logout for the session. The
// session stays valid until the IdP confirms; the returned redirect carries
// the LogoutRequest.
func (f *Flow) InitiateLogout(ctx context.Context, sessionID string, bindCtx domain.BindingContext) (*LogoutResult, error) {
	session, err := f.sessions.Get(sessionID, bindCtx)
	if err != nil {
		return nil, err
	}

	msg, err := f.protocol.BuildLogout(ctx, session, NewRelayKey())
	if err != nil {
		return nil, err
	}

	// The confirmation is matched by InResponseTo.
	f.trackLogout(msg.RequestID, sessionID)

	return &LogoutResult{
		RedirectURL: msg.RedirectURL,
		State:       StateAwaitingLogoutConfirmation,
	}, nil
}

// HandleLogoutRequest processes a peer-initiated LogoutRequest: invalidates
// every local session of the named subject, then answers with a
// LogoutResponse once the invalidation is durable.
func (f *Flow) HandleLogoutRequest(ctx context.Context, raw []byte, relayState string) (*LogoutResult, error) {
	if f.logout == nil {
		return nil, domain.ServiceError("logout processing is not configured")
	}
	req, err := f.logout.ValidateLogoutRequest(ctx, raw)
	if err != nil {
		return nil, err
	}

	count, err := f.sessions.InvalidateAll(req.NameID.Value)
	if err != nil {
		msg, buildErr := f.logout.BuildLogoutResponse(ctx, req, domain.StatusResponder, relayState)
		if buildErr != nil {
			return nil, buildErr
		}
		return &LogoutResult{RedirectURL: msg.RedirectURL, State: StateAuthenticated}, err
	}

	if f.logger != nil {
		f.logger.Info("peer-initiated logout processed",
			zap.String("subject", req.NameID.Value),
			zap.Int("sessions_invalidated", count),
		)
	}

	msg, err := f.logout.BuildLogoutResponse(ctx, req, domain.StatusSuccess, relayState)
	if err != nil {
		return nil, err
	}
	return &LogoutResult{RedirectURL: msg.RedirectURL, State: StateLoggedOut}, nil
}

// HandleLogoutResponse processes the IdP's confirmation of an SP-initiated
// logout. The local session is destroyed only on a Success status; any other
// status leaves the session authenticated and surfaces an error.
func (f *Flow) HandleLogoutResponse(ctx context.Context, raw []byte) (*LogoutResult, error) {
	if f.logout == nil {
		return nil, domain.ServiceError("logout processing is not configured")
	}
	resp, err := f.logout.ValidateLogoutResponse(ctx, raw)
	if err != nil {
		return nil, err
	}

	sessionID, ok := f.consumeLogout(resp.InResponseTo)
	if !ok {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeUnknownRequestID,
			Message: "logout response references no pending logout",
		}
	}

	if !resp.Status.Success() {
		// Re-arm so a retried confirmation can still complete.
		f.trackLogout(resp.InResponseTo, sessionID)
		return &LogoutResult{State: StateAuthenticated}, &domain.AppError{
			Code:    domain.ErrCodeServiceError,
			Message: "logout was not confirmed by the identity provider",
		}
	}

	if err := f.sessions.Invalidate(sessionID); err != nil {
		return nil, err
	}
	return &LogoutResult{State: StateLoggedOut}, nil
}

// recordAuthFailure logs, counts, and (for security events) audits a failed
// authentication attempt.
func (f *Flow) recordAuthFailure(idpEntityID string, err error, bindCtx domain.BindingContext) {
	if f.metrics != nil {
		f.metrics.RecordAuthAttempt(idpEntityID, false)
	}
	if f.logger != nil {
		f.logger.Warn("authentication failed",
			zap.String("idp_entity_id", idpEntityID),
			zap.Error(err),
		)
	}
	if f.audit == nil {
		return
	}
	if verrs, ok := err.(domain.ValidationErrors); ok {
		for _, ve := range verrs {
			if ve.Code.IsSecurityEvent() {
				f.audit.Record(ports.AuditEvent{
					Code:       ve.Code,
					Message:    ve.Message,
					EntityID:   idpEntityID,
					RemoteAddr: bindCtx.IP,
				})
			}
		}
		return
	}
	if appErr, ok := err.(*domain.AppError); ok && appErr.Code.IsSecurityEvent() {
		f.audit.Record(ports.AuditEvent{
			Code:       appErr.Code,
			Message:    appErr.Message,
			EntityID:   idpEntityID,
			RemoteAddr: bindCtx.IP,
		})
	}
}

func (f *Flow) trackLogout(requestID, sessionID string) {
	if requestID == "" {
		return
	}
	now := f.now()
	f.mu.Lock()
	for id, pl := range f.pendingLogouts {
		if !now.Before(pl.expiresAt) {
			delete(f.pendingLogouts, id)
		}
	}
	f.pendingLogouts[requestID] = pendingLogout{
		sessionID: sessionID,
		expiresAt: now.Add(f.cfg.PendingRequestTTL),
	}
	f.mu.Unlock()
}

func (f *Flow) consumeLogout(requestID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pl, ok := f.pendingLogouts[requestID]
	if !ok {
		return "", false
	}
	delete(f.pendingLogouts, requestID)
	if !f.now().Before(pl.expiresAt) {
		return "", false
	}
	return pl.sessionID, true
}
