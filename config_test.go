//go:build unit

package samlengine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
entity_id: https://sp.example.com
acs_url: https://sp.example.com/saml/acs
cert_file: /etc/sp/cert.pem
key_file: /etc/sp/key.pem
idp_metadata_file: /etc/sp/idp-metadata.xml
`

func TestLoadConfig_Minimal(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EntityID != "https://sp.example.com" {
		t.Errorf("EntityID = %q", cfg.EntityID)
	}

	// Defaults fill everything the file left out.
	if cfg.MetadataCacheTTL != "1h" {
		t.Errorf("MetadataCacheTTL = %q", cfg.MetadataCacheTTL)
	}
	if cfg.ClockSkew != "300s" {
		t.Errorf("ClockSkew = %q", cfg.ClockSkew)
	}
	if cfg.SessionTTL != "8h" {
		t.Errorf("SessionTTL = %q", cfg.SessionTTL)
	}
	if cfg.SessionCookieName != "saml_session" {
		t.Errorf("SessionCookieName = %q", cfg.SessionCookieName)
	}
	if cfg.PendingRequestTTL != "10m" {
		t.Errorf("PendingRequestTTL = %q", cfg.PendingRequestTTL)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.AllowIdPInitiated {
		t.Error("AllowIdPInitiated should default to false")
	}
}

func TestLoadConfig_Full(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
entity_id: https://sp.example.com
acs_url: https://sp.example.com/saml/acs
cert_file: /etc/sp/cert.pem
key_file: /etc/sp/key.pem
idp_metadata_url: https://idp.example.com/metadata
idp_entity_id: https://idp.example.com
metadata_cache_ttl: 30m
metadata_refresh_interval: 15m
clock_skew: 120s
session_ttl: 4h
session_sliding_expiry: true
session_bind_ip: true
allow_idp_initiated: true
pending_request_ttl: 5m
metrics_enabled: true
listen_addr: ":9443"
attribute_mappings:
  - source: mail
    target: email
    transform: lowercase
  - source: displayName
    target: name
    default: unknown
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Duration(cfg.ClockSkew) != 120*time.Second {
		t.Errorf("clock skew = %v", cfg.Duration(cfg.ClockSkew))
	}
	if cfg.Duration(cfg.SessionTTL) != 4*time.Hour {
		t.Errorf("session TTL = %v", cfg.Duration(cfg.SessionTTL))
	}
	if !cfg.SessionSlidingExpiry || !cfg.SessionBindIP {
		t.Error("session policy flags not carried")
	}
	if len(cfg.AttributeMappings) != 2 {
		t.Fatalf("mappings = %d", len(cfg.AttributeMappings))
	}
	if cfg.AttributeMappings[0].Transform != "lowercase" {
		t.Errorf("transform = %q", cfg.AttributeMappings[0].Transform)
	}
	if cfg.AttributeMappings[1].Default != "unknown" {
		t.Errorf("default = %q", cfg.AttributeMappings[1].Default)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "entity_id: [unclosed")); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			EntityID:        "https://sp.example.com",
			ACSURL:          "https://sp.example.com/saml/acs",
			CertFile:        "/etc/sp/cert.pem",
			KeyFile:         "/etc/sp/key.pem",
			IdPMetadataFile: "/etc/sp/idp-metadata.xml",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing entity_id", func(c *Config) { c.EntityID = "" }, "entity_id"},
		{"missing acs_url", func(c *Config) { c.ACSURL = "" }, "acs_url"},
		{"missing key_file", func(c *Config) { c.KeyFile = "" }, "key_file"},
		{"no metadata source", func(c *Config) { c.IdPMetadataFile = "" }, "idp_metadata_url or idp_metadata_file"},
		{"both metadata sources", func(c *Config) {
			c.IdPMetadataURL = "https://idp.example.com/metadata"
			c.IdPEntityID = "https://idp.example.com"
		}, "only one of"},
		{"url without entity id", func(c *Config) {
			c.IdPMetadataFile = ""
			c.IdPMetadataURL = "https://idp.example.com/metadata"
		}, "idp_entity_id"},
		{"bad clock skew", func(c *Config) { c.ClockSkew = "five minutes" }, "clock_skew"},
		{"bad refresh interval", func(c *Config) { c.MetadataRefreshInterval = "often" }, "metadata_refresh_interval"},
		{"mapping without source", func(c *Config) {
			c.AttributeMappings = []AttributeMappingConfig{{Target: "email"}}
		}, "source is required"},
		{"mapping without target", func(c *Config) {
			c.AttributeMappings = []AttributeMappingConfig{{Source: "mail"}}
		}, "target is required"},
		{"unknown transform", func(c *Config) {
			c.AttributeMappings = []AttributeMappingConfig{{Source: "mail", Target: "email", Transform: "reverse"}}
		}, "unknown transform"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			cfg.applyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
