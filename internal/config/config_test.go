package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7878" {
		t.Fatalf("unexpected listen_addr: %s", cfg.ListenAddr)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Fatalf("unexpected request timeout: %v", cfg.RequestTimeout)
	}
	if cfg.NetlogStore != "memory" || cfg.NetlogMaxEntries != 1000 {
		t.Fatalf("unexpected netlog defaults: store=%s max=%d", cfg.NetlogStore, cfg.NetlogMaxEntries)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "tauri://localhost" {
		t.Fatalf("unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
	if cfg.LogOutput != "stderr" {
		t.Fatalf("unexpected log_output: %s", cfg.LogOutput)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "5")
	t.Setenv("NETLOG_STORE", " BBolt ")
	t.Setenv("NETLOG_TTL_SECONDS", "120")
	t.Setenv("ALLOWED_ORIGINS", " http://localhost:5173 , ,app://local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.NetlogStore != "bbolt" {
		t.Fatalf("expected normalized store type, got %q", cfg.NetlogStore)
	}
	if cfg.NetlogTTL != 2*time.Minute {
		t.Fatalf("expected 2m ttl, got %v", cfg.NetlogTTL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "http://localhost:5173" || cfg.AllowedOrigins[1] != "app://local" {
		t.Fatalf("unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsInvalidMaxEntries(t *testing.T) {
	t.Setenv("NETLOG_MAX_ENTRIES", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero netlog_max_entries")
	}
}
