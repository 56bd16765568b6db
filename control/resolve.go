// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"

	"github.com/archlinuxcn/matrixbot/lib/ref"
)

// Resolver turns room references into joined rooms. Nothing is cached:
// every call on an alias performs one directory lookup.
type Resolver struct {
	session Session
}

// NewResolver returns a Resolver backed by session.
func NewResolver(session Session) *Resolver {
	return &Resolver{session: session}
}

// Resolve returns the room ID for reference. A room ID is returned
// as-is; an alias costs one lookup, and its failure is a
// *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, reference ref.RoomReference) (ref.RoomID, error) {
	if roomID, ok := reference.RoomID(); ok {
		return roomID, nil
	}
	alias, _ := reference.Alias()
	roomID, err := r.session.ResolveAlias(ctx, alias)
	if err != nil {
		return ref.RoomID{}, &ResolutionError{Alias: alias, Err: err}
	}
	return roomID, nil
}

// Room resolves reference and returns the joined room. A room the
// session is not in yields *RoomNotFoundError.
func (r *Resolver) Room(ctx context.Context, reference ref.RoomReference) (Room, error) {
	roomID, err := r.Resolve(ctx, reference)
	if err != nil {
		return nil, err
	}
	room, ok := r.session.Room(roomID)
	if !ok {
		return nil, &RoomNotFoundError{RoomID: roomID}
	}
	return room, nil
}
