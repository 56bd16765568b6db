// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable value types for the Matrix
// identifiers the bot handles: room IDs, room aliases, event IDs, user
// IDs and event types.
//
// Identifiers arrive as loosely typed strings from two directions: the
// homeserver (JSON responses) and local control clients (command
// frames). Both are parsed into these types at the boundary, so code
// past the boundary never re-validates. All types implement
// encoding.TextMarshaler and encoding.TextUnmarshaler, which makes them
// usable directly as JSON fields and map keys.
//
// [RoomReference] is the one sum type in the package: a target room
// named either by canonical [RoomID] or by human-readable [RoomAlias].
// It is the form in which control clients address rooms.
package ref
