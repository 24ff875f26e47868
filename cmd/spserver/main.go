// Command spserver runs a standalone SAML Service Provider built on the
// engine: login, assertion consumer, single logout, metadata, health and
// metrics endpoints, configured from a YAML file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	samlengine "github.com/philiph/saml-engine"
	"github.com/philiph/saml-engine/internal/adapters/driving/httpapi"
	"github.com/philiph/saml-engine/internal/core/ports"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "spserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := samlengine.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	key, err := samlengine.LoadPrivateKey(cfg.KeyFile)
	if err != nil {
		return err
	}
	certs, err := samlengine.LoadCertificates(cfg.CertFile)
	if err != nil {
		return err
	}

	var metricsRecorder ports.MetricsRecorder
	if cfg.MetricsEnabled {
		metricsRecorder = samlengine.NewPrometheusMetricsRecorder()
	} else {
		metricsRecorder = samlengine.NewNoopMetricsRecorder()
	}
	auditLog := samlengine.NewZapAuditLog(logger.Named("audit"))

	fetcher := samlengine.NewHTTPMetadataFetcher(30 * time.Second)
	cacheTTL := cfg.Duration(cfg.MetadataCacheTTL)

	var trustStore *samlengine.MetadataTrustStore
	if cfg.MetadataRefreshInterval != "" {
		trustStore = samlengine.NewTrustStoreWithRefresh(cacheTTL, fetcher, cfg.Duration(cfg.MetadataRefreshInterval),
			samlengine.WithTrustLogger(logger.Named("trust")),
			samlengine.WithTrustMetrics(metricsRecorder),
		)
	} else {
		trustStore = samlengine.NewTrustStore(cacheTTL, fetcher,
			samlengine.WithTrustLogger(logger.Named("trust")),
			samlengine.WithTrustMetrics(metricsRecorder),
		)
	}
	defer trustStore.Close()

	idpEntityID := cfg.IdPEntityID
	switch {
	case cfg.IdPMetadataFile != "":
		data, err := os.ReadFile(cfg.IdPMetadataFile)
		if err != nil {
			return fmt.Errorf("read IdP metadata file: %w", err)
		}
		if err := trustStore.Register(data); err != nil {
			return fmt.Errorf("register IdP metadata: %w", err)
		}
		if idpEntityID == "" {
			entities, err := samlengine.ParseMetadata(data)
			if err != nil {
				return fmt.Errorf("parse IdP metadata: %w", err)
			}
			if len(entities) == 0 {
				return fmt.Errorf("IdP metadata file contains no entities")
			}
			idpEntityID = entities[0].EntityID
		}
	case cfg.IdPMetadataURL != "":
		trustStore.AddRemoteSource(idpEntityID, cfg.IdPMetadataURL)
	}

	replayGuard := samlengine.NewInMemoryReplayGuardWithCleanup(5 * time.Minute)
	defer replayGuard.Close()

	pendingStore := samlengine.NewInMemoryPendingStore()
	sessionStore := samlengine.NewInMemorySessionStore()
	mappings := make([]samlengine.AttributeMapping, 0, len(cfg.AttributeMappings))
	for _, m := range cfg.AttributeMappings {
		mappings = append(mappings, samlengine.AttributeMapping{
			Source:    m.Source,
			Target:    m.Target,
			Transform: m.Transform,
			Default:   m.Default,
		})
	}
	sessionManager := samlengine.NewSessionManager(sessionStore, samlengine.SessionPolicy{
		TTL:               cfg.Duration(cfg.SessionTTL),
		SlidingExpiry:     cfg.SessionSlidingExpiry,
		BindIP:            cfg.SessionBindIP,
		BindUserAgent:     cfg.SessionBindUserAgent,
		AttributeMappings: mappings,
	},
		samlengine.WithSessionMetrics(metricsRecorder),
		samlengine.WithSessionAudit(auditLog),
		samlengine.WithSessionLogger(logger.Named("sessions")),
	)

	builder := samlengine.NewBuilder(cfg.EntityID, cfg.ACSURL, trustStore)
	verifier := samlengine.NewXMLDsigVerifierWithLogger(logger.Named("xmldsig"))
	validator := samlengine.NewValidator(samlengine.ValidatorConfig{
		SPEntityID: cfg.EntityID,
		ACSURL:     cfg.ACSURL,
		ClockSkew:  cfg.Duration(cfg.ClockSkew),
	}, trustStore, verifier, replayGuard,
		samlengine.WithDecrypter(samlengine.NewXMLEncDecrypter(key)),
		samlengine.WithValidatorLogger(logger.Named("validator")),
		samlengine.WithValidatorMetrics(metricsRecorder),
	)

	signer := samlengine.NewXMLDsigSigner(key, certs[0])
	redirect := samlengine.NewRedirectBinding(key)
	protocol := samlengine.NewSAMLProtocol(builder, validator, trustStore, redirect, signer)

	flow := samlengine.NewFlow(protocol, protocol, pendingStore, sessionManager, samlengine.FlowConfig{
		AllowIdPInitiated: cfg.AllowIdPInitiated,
		PendingRequestTTL: cfg.Duration(cfg.PendingRequestTTL),
	},
		samlengine.WithFlowMetrics(metricsRecorder),
		samlengine.WithFlowAudit(auditLog),
		samlengine.WithFlowLogger(logger.Named("flow")),
	)

	metadataXML, err := samlengine.GenerateSPMetadata(cfg.EntityID, cfg.ACSURL, sloURLFromACS(cfg.ACSURL), certs)
	if err != nil {
		return fmt.Errorf("generate SP metadata: %w", err)
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Flow:           flow,
		Sessions:       sessionManager,
		Trust:          trustStore,
		Codec:          samlengine.NewSessionTokenCodec(key),
		IdPEntityID:    idpEntityID,
		CookieName:     cfg.SessionCookieName,
		MetadataXML:    metadataXML,
		MetricsEnabled: cfg.MetricsEnabled,
		Logger:         logger.Named("http"),
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("entity_id", cfg.EntityID))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// sloURLFromACS derives the single logout endpoint from the ACS URL by
// swapping the path, keeping scheme and host.
func sloURLFromACS(acsURL string) string {
	u, err := url.Parse(acsURL)
	if err != nil {
		return ""
	}
	u.Path = "/saml/slo"
	u.RawQuery = ""
	return u.String()
}
