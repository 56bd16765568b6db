// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"github.com/archlinuxcn/matrixbot/lib/ref"
)

// Event types the bot reads or writes.
const (
	EventTypeRoomMessage ref.EventType = "m.room.message"
	EventTypeMember      ref.EventType = "m.room.member"
)

// PresenceUnavailable is sent as /sync's set_presence so the bot never
// appears online.
const PresenceUnavailable = "unavailable"

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string         `json:"type"`
	Identifier               UserIdentifier `json:"identifier"`
	Password                 string         `json:"password"`
	DeviceID                 string         `json:"device_id,omitempty"`
	InitialDeviceDisplayName string         `json:"initial_device_display_name,omitempty"`
}

// UserIdentifier identifies the account in a LoginRequest.
type UserIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// Event is a Matrix room event as returned by the server.
type Event struct {
	EventID        ref.EventID    `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         ref.RoomID     `json:"room_id,omitzero"`
	StateKey       *string        `json:"state_key,omitempty"`
	Redacts        ref.EventID    `json:"redacts,omitzero"`
	Unsigned       *EventUnsigned `json:"unsigned,omitempty"`
}

// EventUnsigned holds optional unsigned data attached to events.
type EventUnsigned struct {
	Age           int64  `json:"age,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`

	// RedactedBecause is the redaction event that stripped this event's
	// content. Present only on redacted events.
	RedactedBecause map[string]any `json:"redacted_because,omitempty"`
}

// RoomEventFilter narrows the events returned by /messages. It is sent
// as the JSON "filter" query parameter.
type RoomEventFilter struct {
	Senders    []ref.UserID `json:"senders,omitempty"`
	NotSenders []ref.UserID `json:"not_senders,omitempty"`
	Types      []string     `json:"types,omitempty"`
	Limit      int          `json:"limit,omitempty"`
}

// RoomMessagesOptions controls pagination for room message fetching.
type RoomMessagesOptions struct {
	From      string           // pagination token; empty means "from now"
	Direction string           // "b" (backward/older) or "f" (forward/newer)
	Limit     int              // max events to return; 0 uses server default
	Filter    *RoomEventFilter // optional server-side filter
}

// RoomMessagesResponse is returned by RoomMessages.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end,omitempty"`
	Chunk []Event `json:"chunk"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since       string // next_batch token from previous sync; empty for initial sync
	Timeout     int    // long-poll timeout in milliseconds
	SetTimeout  bool   // send the timeout parameter even when it is zero
	Filter      string // filter ID or inline JSON filter
	SetPresence string // "online", "unavailable" or "offline"; empty leaves it unset
}

// SyncResponse is the top-level response from /sync.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection contains per-room sync data grouped by membership state.
// Map keys decode through ref.RoomID's TextUnmarshaler.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// InvitedRoom contains sync data for a room the user was invited to.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom contains sync data for a room the user has left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection contains state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// RedactRequest is the body of a redaction PUT.
type RedactRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SendEventResponse is returned by SendEvent and Redact.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// ResolveAliasResponse is returned by ResolveAlias.
type ResolveAliasResponse struct {
	RoomID  ref.RoomID `json:"room_id"`
	Servers []string   `json:"servers"`
}

// JoinedRoomsResponse is returned by JoinedRooms.
type JoinedRoomsResponse struct {
	JoinedRooms []ref.RoomID `json:"joined_rooms"`
}
