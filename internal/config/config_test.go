package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, expected 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, expected sqlite", cfg.Database.Driver)
	}
	if cfg.Portal.BaseURL != DefaultPortalBaseURL {
		t.Errorf("portal base url = %q", cfg.Portal.BaseURL)
	}
	if cfg.Log.AuditRetentionDays != 90 {
		t.Errorf("audit retention = %d, expected 90", cfg.Log.AuditRetentionDays)
	}
	if cfg.RateLimit.RPS != 20 || cfg.RateLimit.Burst != 40 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestLoad_PartialFileGetsFallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: \"9090\"\nportal:\n  base_url: https://uat.internal.example.com\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, expected value from file", cfg.Server.Port)
	}
	if cfg.Portal.BaseURL != "https://uat.internal.example.com" {
		t.Errorf("portal base url = %q, expected value from file", cfg.Portal.BaseURL)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, expected fallback", cfg.Server.Host)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, expected fallback", cfg.Log.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PORTAL_BASE_URL", "https://review.example.org")
	t.Setenv("AUDIT_RETENTION_DAYS", "30")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("port = %q, expected env override", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, expected env override", cfg.Database.Driver)
	}
	if cfg.Portal.BaseURL != "https://review.example.org" {
		t.Errorf("portal base url = %q, expected env override", cfg.Portal.BaseURL)
	}
	if cfg.Log.AuditRetentionDays != 30 {
		t.Errorf("audit retention = %d, expected env override", cfg.Log.AuditRetentionDays)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a mapping"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
