package ports

import "github.com/philiph/saml-engine/internal/core/domain"

// AuditEvent is a security-relevant occurrence that operators must be able
// to distinguish from ordinary failures.
type AuditEvent struct {
	// Code is the error code that triggered the event.
	Code domain.ErrorCode

	// Message is a short operator-facing description.
	Message string

	// EntityID is the peer entity involved, if known.
	EntityID string

	// SubjectID is the affected principal, if known.
	SubjectID string

	// RemoteAddr is the client address, if known.
	RemoteAddr string
}

// AuditSink receives security audit events.
// Implementations must be safe for concurrent use.
type AuditSink interface {
	Record(event AuditEvent)
}
