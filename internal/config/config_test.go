package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if cfg.Server.Port != 8085 {
		t.Errorf("Server.Port = %d, want 8085", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}

	if cfg.Polling.Interval != 45*time.Second {
		t.Errorf("Polling.Interval = %v, want 45s", cfg.Polling.Interval)
	}

	if cfg.Dedupe.Window != 15*time.Minute {
		t.Errorf("Dedupe.Window = %v, want 15m", cfg.Dedupe.Window)
	}

	if cfg.Templates.DefaultLanguage != "en" {
		t.Errorf("Templates.DefaultLanguage = %q, want %q", cfg.Templates.DefaultLanguage, "en")
	}

	if cfg.NATS.Subject != "fleetbridge.outbound" {
		t.Errorf("NATS.Subject = %q, want %q", cfg.NATS.Subject, "fleetbridge.outbound")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if cfg.Postgres.Enabled {
		t.Error("Postgres.Enabled should default to false")
	}
}

func TestLoad_FromFile(t *testing.T) {
	content := `
server:
  port: 9090
polling:
  interval: 30s
  intervals:
    trips: 20s
tenants:
  - tenant_id: acme
    platforms:
      - platform: samsara
        base_url: https://api.samsara.test
        api_token: tok-123
        webhook_secret: whsec-abc
      - platform: geotab
        base_url: https://my.geotab.test
        database: acme_db
        username: svc
        password: pw
        subscriptions: ["global"]
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}

	if len(cfg.Tenants) != 1 {
		t.Fatalf("len(Tenants) = %d, want 1", len(cfg.Tenants))
	}

	tenant := cfg.Tenants[0]
	if tenant.TenantID != "acme" {
		t.Errorf("TenantID = %q, want %q", tenant.TenantID, "acme")
	}
	if len(tenant.Platforms) != 2 {
		t.Fatalf("len(Platforms) = %d, want 2", len(tenant.Platforms))
	}
	if tenant.Platforms[0].WebhookSecret != "whsec-abc" {
		t.Errorf("WebhookSecret = %q, want %q", tenant.Platforms[0].WebhookSecret, "whsec-abc")
	}
	if tenant.Platforms[1].Database != "acme_db" {
		t.Errorf("Database = %q, want %q", tenant.Platforms[1].Database, "acme_db")
	}

	if got := cfg.PollIntervalFor("trips"); got != 20*time.Second {
		t.Errorf("PollIntervalFor(trips) = %v, want 20s", got)
	}
	if got := cfg.PollIntervalFor("locations"); got != 30*time.Second {
		t.Errorf("PollIntervalFor(locations) = %v, want 30s", got)
	}
}
