// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for the matrixbot binaries,
// for output that has to happen before the structured logger exists.
package process
