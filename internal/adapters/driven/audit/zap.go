// Package audit provides AuditSink adapters.
package audit

import (
	"go.uber.org/zap"

	"github.com/philiph/saml-engine/internal/core/ports"
)

// ZapAuditLog writes security audit events through a zap logger. Security
// events log at Warn so log pipelines can alert on them; everything else
// logs at Info.
type ZapAuditLog struct {
	logger *zap.Logger
}

// NewZapAuditLog creates an audit sink backed by the given logger.
func NewZapAuditLog(logger *zap.Logger) *ZapAuditLog {
	return &ZapAuditLog{logger: logger}
}

// Record writes the event.
func (a *ZapAuditLog) Record(event ports.AuditEvent) {
	fields := []zap.Field{
		zap.String("code", string(event.Code)),
	}
	if event.EntityID != "" {
		fields = append(fields, zap.String("entity_id", event.EntityID))
	}
	if event.SubjectID != "" {
		fields = append(fields, zap.String("subject_id", event.SubjectID))
	}
	if event.RemoteAddr != "" {
		fields = append(fields, zap.String("remote_addr", event.RemoteAddr))
	}

	if event.Code.IsSecurityEvent() {
		a.logger.Warn(event.Message, fields...)
		return
	}
	a.logger.Info(event.Message, fields...)
}

// NopAuditLog discards all events.
type NopAuditLog struct{}

// Record is a no-op.
func (NopAuditLog) Record(ports.AuditEvent) {}

// Ensure implementations satisfy the port
var _ ports.AuditSink = (*ZapAuditLog)(nil)
var _ ports.AuditSink = NopAuditLog{}
