// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"

	"github.com/archlinuxcn/matrixbot/lib/ref"
)

// Frame-level errors returned by ReadFrame.
var (
	// ErrIncompleteFrame means the stream ended inside a frame header or
	// payload.
	ErrIncompleteFrame = errors.New("control: incomplete frame")

	// ErrFrameTooLarge means the announced payload length exceeds the
	// reader's limit. The stream cannot be resynchronized afterwards.
	ErrFrameTooLarge = errors.New("control: frame too large")
)

// ProtocolError reports a frame whose payload is not a valid command.
// The frame is dropped and the connection continues.
type ProtocolError struct {
	// Raw is the undecodable payload.
	Raw []byte
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("control: bad command: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ResolutionError reports a failed room alias lookup.
type ResolutionError struct {
	Alias ref.RoomAlias
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("control: resolving %s: %v", e.Alias, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RoomNotFoundError reports a room ID the session has not joined.
type RoomNotFoundError struct {
	RoomID ref.RoomID
}

func (e *RoomNotFoundError) Error() string {
	return fmt.Sprintf("control: room %s not found", e.RoomID)
}

// RemoteActionError reports a failed homeserver call made on behalf of
// a command. Err wraps a *messaging.MatrixError when the homeserver
// answered.
type RemoteActionError struct {
	// Action is "send", "fetch history" or "redact".
	Action  string
	RoomID  ref.RoomID
	EventID ref.EventID
	Err     error
}

func (e *RemoteActionError) Error() string {
	if !e.EventID.IsZero() {
		return fmt.Sprintf("control: %s %s in %s: %v", e.Action, e.EventID, e.RoomID, e.Err)
	}
	return fmt.Sprintf("control: %s in %s: %v", e.Action, e.RoomID, e.Err)
}

func (e *RemoteActionError) Unwrap() error { return e.Err }
