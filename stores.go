package samlengine

import (
	"github.com/philiph/saml-engine/internal/adapters/driven/audit"
	"github.com/philiph/saml-engine/internal/adapters/driven/crypto"
	"github.com/philiph/saml-engine/internal/adapters/driven/metrics"
	"github.com/philiph/saml-engine/internal/adapters/driven/pending"
	"github.com/philiph/saml-engine/internal/adapters/driven/replay"
	"github.com/philiph/saml-engine/internal/adapters/driven/session"
	"github.com/philiph/saml-engine/internal/adapters/driven/trust"
	"github.com/philiph/saml-engine/internal/core/ports"
)

// Re-export port interfaces
type TrustStore = ports.TrustStore
type ReplayGuard = ports.ReplayGuard
type PendingRequestStore = ports.PendingRequestStore
type SessionStore = ports.SessionStore
type MetricsRecorder = ports.MetricsRecorder
type AuditSink = ports.AuditSink
type AuditEvent = ports.AuditEvent
type MessageSigner = ports.MessageSigner
type MessageVerifier = ports.MessageVerifier
type AssertionEncrypter = ports.AssertionEncrypter
type AssertionDecrypter = ports.AssertionDecrypter
type AuthenticationProtocol = ports.AuthenticationProtocol
type LogoutProtocol = ports.LogoutProtocol
type LoginRequest = ports.LoginRequest
type ValidatedResponse = ports.ValidatedResponse
type LogoutMessage = ports.LogoutMessage

var ErrSessionNotFound = ports.ErrSessionNotFound

// Re-export trust adapter
type MetadataTrustStore = trust.Store
type MetadataFetcher = trust.Fetcher
type HTTPMetadataFetcher = trust.HTTPFetcher

var (
	NewTrustStore            = trust.NewStore
	NewTrustStoreWithRefresh = trust.NewStoreWithRefresh
	NewHTTPMetadataFetcher   = trust.NewHTTPFetcher
	WithTrustLogger          = trust.WithLogger
	WithTrustMetrics         = trust.WithMetricsRecorder
	WithTrustRetry           = trust.WithRetry
	ParseMetadata            = trust.ParseMetadata
)

// Re-export replay adapter
type InMemoryReplayGuard = replay.InMemoryReplayGuard

var (
	NewInMemoryReplayGuard            = replay.NewInMemoryReplayGuard
	NewInMemoryReplayGuardWithCleanup = replay.NewInMemoryReplayGuardWithCleanup
)

// Re-export pending request adapter
type InMemoryPendingStore = pending.InMemoryStore

var NewInMemoryPendingStore = pending.NewInMemoryStore

// Re-export session adapters
type InMemorySessionStore = session.InMemoryStore
type SessionTokenCodec = session.TokenCodec

var (
	NewInMemorySessionStore = session.NewInMemoryStore
	NewSessionTokenCodec    = session.NewTokenCodec
)

// Re-export crypto adapter
type XMLDsigSigner = crypto.XMLDsigSigner
type XMLDsigVerifier = crypto.XMLDsigVerifier
type XMLEncEncrypter = crypto.XMLEncEncrypter
type XMLEncDecrypter = crypto.XMLEncDecrypter

var (
	NewXMLDsigSigner             = crypto.NewXMLDsigSigner
	NewXMLDsigVerifier           = crypto.NewXMLDsigVerifier
	NewXMLDsigVerifierWithLogger = crypto.NewXMLDsigVerifierWithLogger
	NewXMLEncEncrypter           = crypto.NewXMLEncEncrypter
	NewXMLEncDecrypter           = crypto.NewXMLEncDecrypter
	LoadCertificates             = crypto.LoadCertificates
	LoadPrivateKey               = crypto.LoadPrivateKey
	ValidateCertificate          = crypto.ValidateCertificate
)

// Re-export metrics adapters
type PrometheusMetricsRecorder = metrics.PrometheusMetricsRecorder
type NoopMetricsRecorder = metrics.NoopMetricsRecorder

var (
	NewPrometheusMetricsRecorder             = metrics.NewPrometheusMetricsRecorder
	NewPrometheusMetricsRecorderWithRegistry = metrics.NewPrometheusMetricsRecorderWithRegistry
	NewNoopMetricsRecorder                   = metrics.NewNoopMetricsRecorder
)

// Re-export audit adapters
type ZapAuditLog = audit.ZapAuditLog
type NopAuditLog = audit.NopAuditLog

var NewZapAuditLog = audit.NewZapAuditLog
