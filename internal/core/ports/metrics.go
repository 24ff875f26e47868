package ports

// MetricsRecorder is the port interface for recording metrics.
// Implementations are adapters (PrometheusMetricsRecorder for production,
// NoopMetricsRecorder for disabled/testing).
type MetricsRecorder interface {
	// RecordAuthAttempt records a SAML authentication attempt.
	RecordAuthAttempt(idpEntityID string, success bool)

	// RecordValidationFailure records a validation failure by error kind.
	RecordValidationFailure(kind string)

	// RecordReplayRejected records a rejected replayed message.
	RecordReplayRejected()

	// RecordSessionCreated records a new session creation.
	RecordSessionCreated()

	// RecordSessionValidation records a session validation result.
	RecordSessionValidation(valid bool)

	// RecordMetadataRefresh records a metadata refresh attempt.
	RecordMetadataRefresh(entityID string, success bool)
}
