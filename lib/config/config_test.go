// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LoginFile != "login.json" {
		t.Errorf("LoginFile = %q, want login.json", cfg.LoginFile)
	}
	if cfg.Control.MaxFrameSize != 1<<20 {
		t.Errorf("MaxFrameSize = %d, want 1 MiB", cfg.Control.MaxFrameSize)
	}
	if cfg.Control.HistoryPageSize != 10 {
		t.Errorf("HistoryPageSize = %d, want 10", cfg.Control.HistoryPageSize)
	}
	if cfg.Control.RedactionReason != "spam" {
		t.Errorf("RedactionReason = %q, want spam", cfg.Control.RedactionReason)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate(): %v", err)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
login_file: /var/lib/matrixbot/login.json
log_level: debug
control:
  socket: "@matrixbot"
  history_page_size: 20
  redactions_per_second: 2.5
  redaction_burst: 3
sync:
  timeout: 30s
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.LoginFile != "/var/lib/matrixbot/login.json" {
		t.Errorf("LoginFile = %q", cfg.LoginFile)
	}
	if cfg.Control.Socket != "@matrixbot" {
		t.Errorf("Socket = %q", cfg.Control.Socket)
	}
	if cfg.Control.HistoryPageSize != 20 {
		t.Errorf("HistoryPageSize = %d", cfg.Control.HistoryPageSize)
	}
	if cfg.Control.RedactionsPerSecond != 2.5 || cfg.Control.RedactionBurst != 3 {
		t.Errorf("rate = %v burst = %d", cfg.Control.RedactionsPerSecond, cfg.Control.RedactionBurst)
	}
	if cfg.Sync.Timeout != 30*time.Second {
		t.Errorf("Sync.Timeout = %v", cfg.Sync.Timeout)
	}
	// Untouched values keep their defaults.
	if cfg.Control.RedactionReason != "spam" {
		t.Errorf("RedactionReason = %q, want default", cfg.Control.RedactionReason)
	}
	if cfg.Sync.MaxBackoff != 30*time.Second {
		t.Errorf("Sync.MaxBackoff = %v, want default", cfg.Sync.MaxBackoff)
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if cfg.LoginFile != Default().LoginFile {
		t.Errorf("LoginFile = %q", cfg.LoginFile)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"unknown key", "control:\n  sockett: /run/bot.sock\n", "sockett"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"zero page size", "control:\n  history_page_size: 0\n", "history_page_size"},
		{"negative rate", "control:\n  redactions_per_second: -1\n", "redactions_per_second"},
		{"short backoff", "sync:\n  max_backoff: 10ms\n", "max_backoff"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.data))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error = %q, want containing %q", err, test.wantErr)
			}
		})
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("MATRIXBOT_STATE", "/srv/bot")
	cfg, err := Parse([]byte("login_file: ${MATRIXBOT_STATE}/login.json\ncontrol:\n  socket: ${MATRIXBOT_RUNTIME:-/run/matrixbot}/control.sock\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.LoginFile != "/srv/bot/login.json" {
		t.Errorf("LoginFile = %q", cfg.LoginFile)
	}
	if cfg.Control.Socket != "/run/matrixbot/control.sock" {
		t.Errorf("Socket = %q", cfg.Control.Socket)
	}
}

func TestLoad(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		t.Setenv(EnvironmentVariable, "")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q", cfg.LogLevel)
		}
	})

	t.Run("from environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "matrixbot.yaml")
		if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv(EnvironmentVariable, path)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.LogLevel != "warn" {
			t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(EnvironmentVariable, filepath.Join(t.TempDir(), "absent.yaml"))
		if _, err := Load(); err == nil {
			t.Fatal("Load succeeded for a missing file")
		}
	})
}
