// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the package tests.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// since sun_path is limited to 108 bytes and t.TempDir() paths can
// exceed it. [RequireReceive], [RequireSend] and [RequireClosed] wrap
// the select-with-timeout pattern so a broken test fails instead of
// hanging. [UniqueID] hands out distinct names for sockets, rooms and
// transaction ids.
//
// Every helper calls t.Fatalf on failure.
package testutil
