package samlengine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration for an SP deployment.
type Config struct {
	// EntityID is the SAML entity ID for this SP (required).
	EntityID string `yaml:"entity_id"`

	// ACSURL is the Assertion Consumer Service URL (required).
	ACSURL string `yaml:"acs_url"`

	// CertFile is the path to the SP certificate file (PEM format).
	// Supports multiple certificates for rotation.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the SP private key file (PEM format).
	KeyFile string `yaml:"key_file"`

	// IdPMetadataURL is the URL to fetch IdP metadata from.
	// Either IdPMetadataURL or IdPMetadataFile must be set.
	IdPMetadataURL string `yaml:"idp_metadata_url"`

	// IdPMetadataFile is the path to a local IdP metadata file.
	IdPMetadataFile string `yaml:"idp_metadata_file"`

	// IdPEntityID is the entity ID of the IdP to authenticate against.
	IdPEntityID string `yaml:"idp_entity_id"`

	// MetadataCacheTTL is how long fetched metadata stays fresh (e.g. "1h").
	// Defaults to "1h".
	MetadataCacheTTL string `yaml:"metadata_cache_ttl"`

	// MetadataRefreshInterval enables background refresh when set (e.g. "1h").
	MetadataRefreshInterval string `yaml:"metadata_refresh_interval"`

	// ClockSkew is the timestamp validation tolerance (e.g. "300s").
	// Defaults to "300s".
	ClockSkew string `yaml:"clock_skew"`

	// SessionTTL is the session lifetime (e.g. "8h"). Defaults to "8h".
	SessionTTL string `yaml:"session_ttl"`

	// SessionSlidingExpiry extends sessions on access.
	SessionSlidingExpiry bool `yaml:"session_sliding_expiry"`

	// SessionBindIP pins sessions to the creating client address.
	SessionBindIP bool `yaml:"session_bind_ip"`

	// SessionBindUserAgent pins sessions to the creating user agent.
	SessionBindUserAgent bool `yaml:"session_bind_user_agent"`

	// SessionCookieName is the session cookie name. Defaults to "saml_session".
	SessionCookieName string `yaml:"session_cookie_name"`

	// AllowIdPInitiated accepts unsolicited responses. Defaults to false.
	AllowIdPInitiated bool `yaml:"allow_idp_initiated"`

	// PendingRequestTTL bounds a login attempt (e.g. "10m"). Defaults to "10m".
	PendingRequestTTL string `yaml:"pending_request_ttl"`

	// AttributeMappings projects assertion attributes onto local names.
	AttributeMappings []AttributeMappingConfig `yaml:"attribute_mappings"`

	// MetricsEnabled exposes Prometheus metrics. Defaults to false.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// ListenAddr is the HTTP listen address for the standalone server.
	// Defaults to ":8080".
	ListenAddr string `yaml:"listen_addr"`
}

// AttributeMappingConfig is one row of the attribute mapping table.
type AttributeMappingConfig struct {
	// Source is the SAML attribute name or OID to read.
	Source string `yaml:"source"`

	// Target is the local name the value is stored under.
	Target string `yaml:"target"`

	// Transform is "", "lowercase" or "uppercase".
	Transform string `yaml:"transform"`

	// Default is used when the source attribute is absent.
	Default string `yaml:"default"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MetadataCacheTTL == "" {
		c.MetadataCacheTTL = "1h"
	}
	if c.ClockSkew == "" {
		c.ClockSkew = "300s"
	}
	if c.SessionTTL == "" {
		c.SessionTTL = "8h"
	}
	if c.SessionCookieName == "" {
		c.SessionCookieName = "saml_session"
	}
	if c.PendingRequestTTL == "" {
		c.PendingRequestTTL = "10m"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if c.ACSURL == "" {
		return fmt.Errorf("acs_url is required")
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return fmt.Errorf("cert_file and key_file are required")
	}
	if c.IdPMetadataURL == "" && c.IdPMetadataFile == "" {
		return fmt.Errorf("either idp_metadata_url or idp_metadata_file must be specified")
	}
	if c.IdPMetadataURL != "" && c.IdPMetadataFile != "" {
		return fmt.Errorf("only one of idp_metadata_url or idp_metadata_file can be specified")
	}
	if c.IdPMetadataURL != "" && c.IdPEntityID == "" {
		return fmt.Errorf("idp_entity_id is required with idp_metadata_url")
	}

	for _, field := range []struct {
		name, value string
	}{
		{"metadata_cache_ttl", c.MetadataCacheTTL},
		{"clock_skew", c.ClockSkew},
		{"session_ttl", c.SessionTTL},
		{"pending_request_ttl", c.PendingRequestTTL},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", field.name, field.value)
		}
	}
	if c.MetadataRefreshInterval != "" {
		if _, err := time.ParseDuration(c.MetadataRefreshInterval); err != nil {
			return fmt.Errorf("metadata_refresh_interval: invalid duration %q", c.MetadataRefreshInterval)
		}
	}

	for i, m := range c.AttributeMappings {
		if m.Source == "" {
			return fmt.Errorf("attribute_mappings[%d]: source is required", i)
		}
		if m.Target == "" {
			return fmt.Errorf("attribute_mappings[%d]: target is required", i)
		}
		switch m.Transform {
		case "", "lowercase", "uppercase":
		default:
			return fmt.Errorf("attribute_mappings[%d]: unknown transform %q", i, m.Transform)
		}
	}
	return nil
}

// Duration returns a parsed duration field. Validate must have passed.
func (c *Config) Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
