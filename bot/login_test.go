// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/messaging"
)

func TestLoadLoginInfoToleratesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.json")
	content := `{
  // written by matrixbot --login
  "homeserver": "https://matrix.example.org",
  "user_id": "@bot:example.org",
  "device_id": "ABCDEF",
  "access_token": "secret", /* trailing comma follows */
}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := LoadLoginInfo(path)
	if err != nil {
		t.Fatalf("LoadLoginInfo: %v", err)
	}
	want := LoginInfo{
		Homeserver:  "https://matrix.example.org",
		UserID:      ref.MustParseUserID("@bot:example.org"),
		DeviceID:    "ABCDEF",
		AccessToken: "secret",
	}
	if info != want {
		t.Errorf("info = %+v, want %+v", info, want)
	}
}

func TestLoadLoginInfoRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown field",
			content: `{"homeserver":"https://h","user_id":"@b:h","device_id":"D","access_token":"t","refresh_token":"r"}`,
			want:    "unknown field",
		},
		{
			name:    "missing token",
			content: `{"homeserver":"https://h","user_id":"@b:h","device_id":"D"}`,
			want:    "access_token is empty",
		},
		{
			name:    "bad user id",
			content: `{"homeserver":"https://h","user_id":"bot","device_id":"D","access_token":"t"}`,
			want:    "user ID",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "login.json")
			if err := os.WriteFile(path, []byte(test.content), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, err := LoadLoginInfo(path)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("LoadLoginInfo = %v, want error containing %q", err, test.want)
			}
		})
	}
}

func TestSaveLoginInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.json")
	info := LoginInfo{
		Homeserver:  "https://matrix.example.org",
		UserID:      ref.MustParseUserID("@bot:example.org"),
		DeviceID:    "ABCDEF",
		AccessToken: "secret",
	}
	if err := SaveLoginInfo(path, info); err != nil {
		t.Fatalf("SaveLoginInfo: %v", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if mode := stat.Mode().Perm(); mode != 0o600 {
		t.Errorf("mode = %o, want 600", mode)
	}
	loaded, err := LoadLoginInfo(path)
	if err != nil {
		t.Fatalf("LoadLoginInfo: %v", err)
	}
	if loaded != info {
		t.Errorf("loaded = %+v, want %+v", loaded, info)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the login file", len(entries))
	}
}

func TestDiscoverHomeserver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/.well-known/matrix/client" {
			http.NotFound(writer, request)
			return
		}
		writeJSON(writer, map[string]any{"m.homeserver": map[string]string{"base_url": "https://matrix.example.org/"}})
	}))
	defer server.Close()

	serverName := strings.TrimPrefix(server.URL, "http://")
	got := discoverHomeserver(context.Background(), server.Client(), "http", serverName)
	if got != "https://matrix.example.org" {
		t.Errorf("discoverHomeserver = %q", got)
	}
}

func TestDiscoverHomeserverFallback(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	serverName := strings.TrimPrefix(server.URL, "http://")
	got := discoverHomeserver(context.Background(), server.Client(), "http", serverName)
	if got != server.URL {
		t.Errorf("discoverHomeserver = %q, want %q", got, server.URL)
	}
}

func TestInteractiveLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/_matrix/client/v3/login" {
			http.NotFound(writer, request)
			return
		}
		var login messaging.LoginRequest
		if err := json.NewDecoder(request.Body).Decode(&login); err != nil {
			t.Errorf("decoding login request: %v", err)
		}
		if login.Identifier.User != "@bot:example.org" || login.Password != "hunter2" {
			writer.WriteHeader(http.StatusForbidden)
			writeJSON(writer, map[string]string{"errcode": "M_FORBIDDEN", "error": "bad credentials"})
			return
		}
		writeJSON(writer, messaging.AuthResponse{
			UserID:      ref.MustParseUserID("@bot:example.org"),
			AccessToken: "fresh-token",
			DeviceID:    "NEWDEVICE",
		})
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "login.json")
	var output bytes.Buffer
	prompt := LoginPrompt{
		Input:        strings.NewReader("not-a-user\n@bot:example.org\n"),
		Output:       &output,
		ReadPassword: func() ([]byte, error) { return []byte("hunter2"), nil },
	}

	session, err := InteractiveLogin(context.Background(), prompt, path, LoginOptions{Homeserver: server.URL})
	if err != nil {
		t.Fatalf("InteractiveLogin: %v", err)
	}
	defer session.Close()

	if !strings.Contains(output.String(), "Error:") {
		t.Errorf("invalid user ID was not reported; output:\n%s", output.String())
	}
	info, err := LoadLoginInfo(path)
	if err != nil {
		t.Fatalf("LoadLoginInfo: %v", err)
	}
	if info.AccessToken != "fresh-token" || info.DeviceID != "NEWDEVICE" || info.Homeserver != server.URL {
		t.Errorf("saved info = %+v", info)
	}
}

func TestInteractiveLoginEmptyPassword(t *testing.T) {
	prompt := LoginPrompt{
		Input:        strings.NewReader("@bot:example.org\n"),
		Output:       &bytes.Buffer{},
		ReadPassword: func() ([]byte, error) { return nil, nil },
	}
	path := filepath.Join(t.TempDir(), "login.json")
	if _, err := InteractiveLogin(context.Background(), prompt, path, LoginOptions{Homeserver: "http://127.0.0.1:1"}); err == nil {
		t.Fatal("InteractiveLogin accepted an empty password")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("login file written after a failed login")
	}
}
