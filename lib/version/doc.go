// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package version carries build information for the matrixbot binaries.
//
// Three variables are injected at build time with -ldflags -X:
// [GitCommit], [BuildTime] and [Version]. They default to "unknown" and
// "0.1.0-dev" in development builds and test runs.
//
//	go build -ldflags "-X github.com/archlinuxcn/matrixbot/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
