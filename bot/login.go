// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"golang.org/x/term"

	"github.com/archlinuxcn/matrixbot/lib/netutil"
	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/lib/secret"
	"github.com/archlinuxcn/matrixbot/messaging"
)

// LoginInfo is the content of the login file written by an interactive
// login and read on every later start.
type LoginInfo struct {
	Homeserver  string     `json:"homeserver"`
	UserID      ref.UserID `json:"user_id"`
	DeviceID    string     `json:"device_id"`
	AccessToken string     `json:"access_token"`
}

// Validate reports missing fields.
func (info LoginInfo) Validate() error {
	var errs []error
	if info.Homeserver == "" {
		errs = append(errs, errors.New("homeserver is empty"))
	}
	if info.UserID.IsZero() {
		errs = append(errs, errors.New("user_id is empty"))
	}
	if info.DeviceID == "" {
		errs = append(errs, errors.New("device_id is empty"))
	}
	if info.AccessToken == "" {
		errs = append(errs, errors.New("access_token is empty"))
	}
	return errors.Join(errs...)
}

// LoadLoginInfo reads a login file. Comments and trailing commas are
// tolerated; unknown fields are not.
func LoadLoginInfo(path string) (LoginInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoginInfo{}, fmt.Errorf("reading login file: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	var info LoginInfo
	if err := decoder.Decode(&info); err != nil {
		return LoginInfo{}, fmt.Errorf("parsing login file %s: %w", path, err)
	}
	if err := info.Validate(); err != nil {
		return LoginInfo{}, fmt.Errorf("login file %s: %w", path, err)
	}
	return info, nil
}

// SaveLoginInfo writes info to path with mode 0600. The file is
// replaced atomically.
func SaveLoginInfo(path string, info LoginInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding login info: %w", err)
	}
	data = append(data, '\n')

	temporary, err := os.CreateTemp(filepath.Dir(path), ".login-*.json")
	if err != nil {
		return fmt.Errorf("creating login file: %w", err)
	}
	defer os.Remove(temporary.Name())

	if err := temporary.Chmod(0o600); err != nil {
		temporary.Close()
		return fmt.Errorf("setting login file mode: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing login file: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("writing login file: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("installing login file: %w", err)
	}
	return nil
}

// Open creates a session from the stored access token. The token is not
// validated; call WhoAmI for that.
func (info LoginInfo) Open(httpClient *http.Client, logger *slog.Logger) (*messaging.DirectSession, error) {
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: info.Homeserver,
		HTTPClient:    httpClient,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	return client.SessionFromToken(info.UserID, info.DeviceID, info.AccessToken)
}

// wellKnown is the body of /.well-known/matrix/client.
type wellKnown struct {
	Homeserver struct {
		BaseURL string `json:"base_url"`
	} `json:"m.homeserver"`
}

// DiscoverHomeserver finds the client-server API base URL for a server
// name through /.well-known/matrix/client. Without a usable well-known
// document the server name itself is assumed to serve the API.
func DiscoverHomeserver(ctx context.Context, httpClient *http.Client, serverName string) string {
	return discoverHomeserver(ctx, httpClient, "https", serverName)
}

func discoverHomeserver(ctx context.Context, httpClient *http.Client, scheme, serverName string) string {
	fallback := scheme + "://" + serverName
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, fallback+"/.well-known/matrix/client", nil)
	if err != nil {
		return fallback
	}
	response, err := httpClient.Do(request)
	if err != nil {
		return fallback
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fallback
	}
	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return fallback
	}

	var document wellKnown
	if err := json.Unmarshal(body, &document); err != nil || document.Homeserver.BaseURL == "" {
		return fallback
	}
	return strings.TrimRight(document.Homeserver.BaseURL, "/")
}

// LoginPrompt is the terminal an interactive login talks to.
type LoginPrompt struct {
	// Input supplies the user ID line.
	Input io.Reader

	// Output receives the prompts.
	Output io.Writer

	// ReadPassword reads the password without echo. If nil, the
	// password is read from standard input with the terminal's echo
	// turned off.
	ReadPassword func() ([]byte, error)
}

// LoginOptions configures InteractiveLogin.
type LoginOptions struct {
	// Homeserver overrides discovery from the user ID's server name.
	Homeserver string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// InteractiveLogin asks for a user ID and password, logs in, and saves
// the resulting session to path. The caller must Close the returned
// session.
func InteractiveLogin(ctx context.Context, prompt LoginPrompt, path string, options LoginOptions) (*messaging.DirectSession, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userID, err := promptUserID(prompt)
	if err != nil {
		return nil, err
	}

	homeserver := options.Homeserver
	if homeserver == "" {
		homeserver = DiscoverHomeserver(ctx, options.HTTPClient, userID.Server())
	}
	logger.Info("interactive login", "user_id", userID, "homeserver", homeserver)

	readPassword := prompt.ReadPassword
	if readPassword == nil {
		readPassword = func() ([]byte, error) {
			return term.ReadPassword(int(os.Stdin.Fd()))
		}
	}
	fmt.Fprintf(prompt.Output, "Password for %s: ", userID)
	passwordBytes, err := readPassword()
	fmt.Fprintln(prompt.Output)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(passwordBytes) == 0 {
		return nil, errors.New("password can't be empty")
	}
	password, err := secret.NewFromBytes(passwordBytes)
	if err != nil {
		return nil, fmt.Errorf("protecting password: %w", err)
	}
	defer password.Close()

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: homeserver,
		HTTPClient:    options.HTTPClient,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	session, err := client.Login(ctx, userID.String(), password, "")
	if err != nil {
		return nil, err
	}

	info := LoginInfo{
		Homeserver:  client.HomeserverURL(),
		UserID:      session.UserID(),
		DeviceID:    session.DeviceID(),
		AccessToken: session.AccessToken(),
	}
	if err := SaveLoginInfo(path, info); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// promptUserID asks until a valid user ID is entered.
func promptUserID(prompt LoginPrompt) (ref.UserID, error) {
	scanner := bufio.NewScanner(prompt.Input)
	for {
		fmt.Fprint(prompt.Output, "User: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return ref.UserID{}, fmt.Errorf("reading user ID: %w", err)
			}
			return ref.UserID{}, errors.New("no user ID entered")
		}
		userID, err := ref.ParseUserID(strings.TrimSpace(scanner.Text()))
		if err != nil {
			fmt.Fprintf(prompt.Output, "Error: %v\n", err)
			continue
		}
		return userID, nil
	}
}
