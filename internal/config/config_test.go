package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
capture:
  interface: eth0
  port: 8889
  window: 30s
scheduler:
  interval: 45s
store:
  path: /tmp/spectra.db
  max_rows: 5000
api:
  listen_addr: 127.0.0.1:9999
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	// 1. Explicit values survive.
	if cfg.Capture.Interface != "eth0" || cfg.Capture.Port != 8889 {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Scheduler.Interval != "45s" {
		t.Errorf("scheduler.interval = %q", cfg.Scheduler.Interval)
	}
	if cfg.Store.MaxRows != 5000 {
		t.Errorf("store.max_rows = %d", cfg.Store.MaxRows)
	}

	// 2. Omitted values pick up defaults.
	if cfg.Capture.Tool != "tshark" {
		t.Errorf("capture.tool = %q, want tshark", cfg.Capture.Tool)
	}
	if cfg.Capture.Grace != "10s" {
		t.Errorf("capture.grace = %q, want 10s", cfg.Capture.Grace)
	}
	if cfg.Tracker.MinWindows != 20 || cfg.Tracker.Limit != 20 {
		t.Errorf("tracker defaults = %+v", cfg.Tracker)
	}
	if cfg.API.TokenTTL != "24h" {
		t.Errorf("api.token_ttl = %q, want 24h", cfg.API.TokenTTL)
	}
}

func TestLoadConfigDefaultsOnly(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Capture.Port != 4000 {
		t.Errorf("capture.port = %d, want 4000", cfg.Capture.Port)
	}
	if cfg.Capture.Interface != "any" {
		t.Errorf("capture.interface = %q, want any", cfg.Capture.Interface)
	}
	if cfg.Store.Path != "data/dhtspectra.db" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "bad duration",
			yaml:    "scheduler:\n  interval: soon\n",
			wantSub: "scheduler.interval",
		},
		{
			name:    "negative duration",
			yaml:    "capture:\n  window: -5s\n",
			wantSub: "positive",
		},
		{
			name:    "port out of range",
			yaml:    "capture:\n  port: 70000\n",
			wantSub: "out of range",
		},
		{
			name:    "hash without secret",
			yaml:    "api:\n  password_hash: abcdef\n",
			wantSub: "jwt_secret",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
