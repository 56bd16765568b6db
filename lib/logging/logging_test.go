// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, test := range tests {
		got, err := ParseLevel(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", test.input, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", test.input, got, test.want)
		}
	}
}

func TestNewNonTerminalIsJSON(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("frame dropped", "bytes", 12)

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output is not a single JSON record: %v (%q)", err, buffer.String())
	}
	if record["msg"] != "frame dropped" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["bytes"] != float64(12) {
		t.Errorf("bytes = %v", record["bytes"])
	}
}
