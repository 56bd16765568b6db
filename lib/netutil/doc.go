// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil has small I/O helpers shared by the homeserver
// client and the control socket.
//
// [ReadResponse] bounds HTTP response body reads so that a misbehaving
// homeserver cannot exhaust memory. [IsExpectedCloseError] separates
// ordinary peer disconnects from errors worth logging.
package netutil
