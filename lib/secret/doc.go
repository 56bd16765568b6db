// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps credentials (the access token from login.json,
// the password typed at an interactive login) outside the Go heap.
//
// [Buffer] memory comes from an anonymous mmap, is mlock'ed so it never
// reaches swap, and is marked MADV_DONTDUMP so it never lands in a core
// file. Close zeroes and unmaps it; any later access panics. [Zero]
// scrubs ordinary heap slices that briefly held a secret (file contents,
// JSON encodings) once they have been copied into a Buffer.
package secret
