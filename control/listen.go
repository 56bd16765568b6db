// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
)

// abstractPrefix marks a socket name in the Linux abstract namespace.
const abstractPrefix = "@"

// IsAbstract reports whether path names an abstract-namespace socket.
func IsAbstract(path string) bool {
	return strings.HasPrefix(path, abstractPrefix)
}

// Listen binds a Unix stream socket at path. A path starting with "@"
// is bound in the abstract namespace and needs no cleanup. Otherwise a
// stale socket file left by an earlier process is removed first.
func Listen(path string) (net.Listener, error) {
	if path == "" {
		return nil, errors.New("control: empty socket path")
	}
	if !IsAbstract(path) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("control: removing stale socket %s: %w", path, err)
		}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("control: listening on %s: %w", path, err)
	}
	if unixListener, ok := listener.(*net.UnixListener); ok && !IsAbstract(path) {
		unixListener.SetUnlinkOnClose(true)
	}
	return listener, nil
}
