// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time seam for code that waits: the /sync retry
// backoff and the redaction rate limiter. Production passes [Real];
// tests pass [Fake] and move time forward with Advance, using
// WaitForTimers to learn that the code under test has started waiting.
package clock
