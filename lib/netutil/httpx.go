// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"io"
)

// MaxResponseSize bounds JSON API response body reads: 64 MiB. Client-
// server API responses, including large initial syncs, are far smaller.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use it instead of io.ReadAll on HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody reads an error response body for use in diagnostics. Read
// errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
