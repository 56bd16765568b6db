// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the parts of the Matrix client-server API
// that the bot uses.
//
// [Client] is unauthenticated: it holds the homeserver URL and HTTP
// transport and performs password login. [DirectSession] wraps a Client
// with an access token and implements the calls the bot makes: identity
// checks (WhoAmI), alias resolution, joined-room listing, single-event
// fetch, backward history pages with a server-side [RoomEventFilter],
// message sends and redactions (both idempotent PUTs with a transaction
// id), and /sync long-polling.
//
// The access token lives in [secret.Buffer] memory, locked against swap
// and excluded from core dumps. Callers must Close the session.
//
// All homeserver error answers are returned as [*MatrixError] carrying
// the Matrix error code and the HTTP status; [IsMatrixError] tests for
// one code. Request URLs are built by string concatenation with
// url.PathEscape per segment, which keeps '#', '!' and '$' sigils in
// room aliases and event ids correctly escaped.
//
// [ClassifyMessage] sorts timeline events into original messages, edits,
// redacted messages and everything else.
package messaging
