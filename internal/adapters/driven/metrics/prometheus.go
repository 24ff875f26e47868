// Package metrics provides MetricsRecorder adapters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/philiph/saml-engine/internal/core/ports"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	authAttemptsTotal       *prometheus.CounterVec
	validationFailuresTotal *prometheus.CounterVec
	replayRejectedTotal     prometheus.Counter
	sessionsCreatedTotal    prometheus.Counter
	sessionValidationsTotal *prometheus.CounterVec
	metadataRefreshTotal    *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a new Prometheus metrics recorder
// using the default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a new Prometheus metrics recorder
// with a custom registry. Use this for testing.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	authAttemptsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saml_engine_auth_attempts_total",
		Help: "Total SAML authentication attempts",
	}, []string{"idp_entity_id", "result"})

	validationFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saml_engine_validation_failures_total",
		Help: "Total response validation failures by error kind",
	}, []string{"kind"})

	replayRejectedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "saml_engine_replay_rejected_total",
		Help: "Total replayed messages rejected",
	})

	sessionsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "saml_engine_sessions_created_total",
		Help: "Total sessions created",
	})

	sessionValidationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saml_engine_session_validations_total",
		Help: "Total session validation attempts",
	}, []string{"result"})

	metadataRefreshTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saml_engine_metadata_refresh_total",
		Help: "Total metadata refresh attempts",
	}, []string{"entity_id", "result"})

	reg.MustRegister(
		authAttemptsTotal,
		validationFailuresTotal,
		replayRejectedTotal,
		sessionsCreatedTotal,
		sessionValidationsTotal,
		metadataRefreshTotal,
	)

	return &PrometheusMetricsRecorder{
		authAttemptsTotal:       authAttemptsTotal,
		validationFailuresTotal: validationFailuresTotal,
		replayRejectedTotal:     replayRejectedTotal,
		sessionsCreatedTotal:    sessionsCreatedTotal,
		sessionValidationsTotal: sessionValidationsTotal,
		metadataRefreshTotal:    metadataRefreshTotal,
	}
}

// RecordAuthAttempt records a SAML authentication attempt.
func (p *PrometheusMetricsRecorder) RecordAuthAttempt(idpEntityID string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	p.authAttemptsTotal.WithLabelValues(idpEntityID, result).Inc()
}

// RecordValidationFailure records a validation failure by error kind.
func (p *PrometheusMetricsRecorder) RecordValidationFailure(kind string) {
	p.validationFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordReplayRejected records a rejected replayed message.
func (p *PrometheusMetricsRecorder) RecordReplayRejected() {
	p.replayRejectedTotal.Inc()
}

// RecordSessionCreated records a new session creation.
func (p *PrometheusMetricsRecorder) RecordSessionCreated() {
	p.sessionsCreatedTotal.Inc()
}

// RecordSessionValidation records a session validation result.
func (p *PrometheusMetricsRecorder) RecordSessionValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	p.sessionValidationsTotal.WithLabelValues(result).Inc()
}

// RecordMetadataRefresh records a metadata refresh attempt.
func (p *PrometheusMetricsRecorder) RecordMetadataRefresh(entityID string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	p.metadataRefreshTotal.WithLabelValues(entityID, result).Inc()
}

// Ensure PrometheusMetricsRecorder implements ports.MetricsRecorder
var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
