// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"

	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/messaging"
)

// Session is the bot's Matrix session as seen by the control channel.
// Implementations must be safe for concurrent use by many connections.
type Session interface {
	// ResolveAlias looks a room alias up in the room directory.
	ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error)

	// Room returns the handle of a joined room, or false when the
	// session is not in that room.
	Room(roomID ref.RoomID) (Room, bool)
}

// Room is a joined room.
type Room interface {
	ID() ref.RoomID

	// Event fetches one event of the room.
	Event(ctx context.Context, eventID ref.EventID) (messaging.Event, error)

	// Messages fetches one backward page of history, newest first.
	Messages(ctx context.Context, query HistoryQuery) ([]messaging.Event, error)

	// Send sends an m.room.message and returns its event ID.
	Send(ctx context.Context, content messaging.MessageContent) (ref.EventID, error)

	// Redact removes an event's content, recording reason.
	Redact(ctx context.Context, eventID ref.EventID, reason string) error
}

// HistoryQuery describes one backward history page.
type HistoryQuery struct {
	// Sender asks the server to return only this user's events. The
	// server's filtering is not trusted.
	Sender ref.UserID

	// Limit is the page size.
	Limit int
}
