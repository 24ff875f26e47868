// Package httpapi is the HTTP transport adapter: it maps chi routes onto the
// engine's flow orchestrator and session manager. All SAML semantics live in
// the engine; this package only moves bytes and cookies.
package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	samlengine "github.com/philiph/saml-engine"
	"github.com/philiph/saml-engine/internal/core/domain"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// Server serves the SP endpoints: login, assertion consumer, single logout,
// metadata, health and metrics.
type Server struct {
	flow       *samlengine.Flow
	sessions   *samlengine.SessionManager
	trust      ports.TrustStore
	codec      TokenCodec
	idpEntity  string
	cookieName string
	metadata   []byte
	metrics    bool
	logger     *zap.Logger
}

// TokenCodec converts between session IDs and transport tokens.
type TokenCodec interface {
	Encode(sessionID string, expiresAt time.Time) (string, error)
	Decode(token string) (string, error)
}

// ServerConfig wires the server's collaborators.
type ServerConfig struct {
	Flow           *samlengine.Flow
	Sessions       *samlengine.SessionManager
	Trust          ports.TrustStore
	Codec          TokenCodec
	IdPEntityID    string
	CookieName     string
	MetadataXML    []byte
	MetricsEnabled bool
	Logger         *zap.Logger
}

// NewServer creates the HTTP adapter.
func NewServer(cfg ServerConfig) *Server {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "saml_session"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		flow:       cfg.Flow,
		sessions:   cfg.Sessions,
		trust:      cfg.Trust,
		codec:      cfg.Codec,
		idpEntity:  cfg.IdPEntityID,
		cookieName: cookieName,
		metadata:   cfg.MetadataXML,
		metrics:    cfg.MetricsEnabled,
		logger:     logger,
	}
}

// Router builds the chi route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/saml/login", s.handleLogin)
	r.Post("/saml/acs", s.handleACS)
	r.Get("/saml/slo", s.handleSLO)
	r.Get("/saml/logout", s.handleLogout)
	r.Get("/saml/metadata", s.handleMetadata)
	r.Get("/healthz", s.handleHealth)
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/whoami", s.handleWhoami)

	return r
}

// handleLogin starts an SP-initiated flow and redirects to the IdP.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	result, err := s.flow.InitiateLogin(r.Context(), s.idpEntity, resource)
	if err != nil {
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// handleACS consumes the IdP's response and establishes the session cookie.
func (s *Server) handleACS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, domain.BadRequestError("malformed form body"))
		return
	}
	encoded := r.PostFormValue("SAMLResponse")
	if encoded == "" {
		s.writeError(w, domain.BadRequestError("missing SAMLResponse"))
		return
	}
	raw, err := samlengine.NewPostBinding().Decode(encoded)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.flow.HandleCallback(r.Context(), raw, r.PostFormValue("RelayState"), s.bindingContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, err := s.codec.Encode(result.Session.ID, result.Session.ExpiresAt)
	if err != nil {
		s.writeError(w, domain.ServiceError("failed to issue session token"))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	target := result.ResourceURL
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleSLO processes inbound logout messages on the redirect binding.
func (s *Server) handleSLO(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	relayState := query.Get("RelayState")

	if encoded := query.Get("SAMLRequest"); encoded != "" {
		raw, err := samlengine.NewRedirectBinding(nil).Decode(encoded)
		if err != nil {
			s.writeError(w, err)
			return
		}
		result, err := s.flow.HandleLogoutRequest(r.Context(), raw, relayState)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.clearCookie(w, r)
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
		return
	}

	if encoded := query.Get("SAMLResponse"); encoded != "" {
		raw, err := samlengine.NewRedirectBinding(nil).Decode(encoded)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if _, err := s.flow.HandleLogoutResponse(r.Context(), raw); err != nil {
			s.writeError(w, err)
			return
		}
		s.clearCookie(w, r)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	s.writeError(w, domain.BadRequestError("no SAMLRequest or SAMLResponse in query"))
}

// handleLogout starts SP-initiated Single Logout for the current session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	result, err := s.flow.InitiateLogout(r.Context(), sessionID, s.bindingContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	w.Write(s.metadata)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.trust.Health()
	status := http.StatusOK
	if health.EntityCount == 0 {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entities":     health.EntityCount,
		"last_refresh": health.LastRefreshTime,
		"healthy":      health.EntityCount > 0,
	})
}

// handleWhoami reports the authenticated principal, demonstrating
// policy-checked session lookup.
func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(r)
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	session, err := s.sessions.Get(sessionID, s.bindingContext(r))
	if err != nil {
		s.clearCookie(w, r)
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user_id":    session.UserID,
		"idp":        session.IdPEntityID,
		"attributes": session.Attributes,
		"expires_at": session.ExpiresAt,
	})
}

// sessionID extracts and decodes the session cookie.
func (s *Server) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return "", false
	}
	sessionID, err := s.codec.Decode(cookie.Value)
	if err != nil {
		return "", false
	}
	return sessionID, true
}

func (s *Server) clearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// bindingContext captures the client context for session binding checks.
func (s *Server) bindingContext(r *http.Request) domain.BindingContext {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return domain.BindingContext{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}

// writeError maps engine errors onto HTTP statuses. Specific kinds stay in
// the logs; the client sees only the generic message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch e := err.(type) {
	case *domain.AppError:
		status = e.Code.HTTPStatus()
		message = e.Message
		if e.Code == domain.ErrCodeAuthFailed {
			message = "authentication failed, please retry"
		}
	case domain.ValidationErrors:
		status = http.StatusUnauthorized
		message = "authentication failed, please retry"
	}

	s.logger.Warn("request failed", zap.Error(err), zap.Int("status", status))
	http.Error(w, message, status)
}
