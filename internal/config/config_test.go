package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9090"
invitations:
  ttl: 48h
housekeeping:
  enabled: true
  interval: 1m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Server.Address() != "0.0.0.0:9090" {
		t.Errorf("unexpected address %q", cfg.Server.Address())
	}
	if !cfg.Invitations.AllowExpiredAccept {
		t.Error("expected permissive expired accept by default")
	}
	if cfg.Invitations.TTL != 48*time.Hour {
		t.Errorf("expected 48h ttl, got %v", cfg.Invitations.TTL)
	}
	if !cfg.Housekeeping.Enabled || cfg.Housekeeping.Interval != time.Minute {
		t.Errorf("unexpected housekeeping config %+v", cfg.Housekeeping)
	}
	if cfg.Database.NotifyChannel != "gig_conversations" {
		t.Errorf("expected default notify channel, got %q", cfg.Database.NotifyChannel)
	}
}
