// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// RoomReference names a room either by its canonical RoomID or by a
// RoomAlias that still needs a directory lookup. Exactly one of the two
// is set on a non-zero value.
//
// The JSON form is the plain identifier string; the sigil ('!' or '#')
// selects the variant.
type RoomReference struct {
	roomID RoomID
	alias  RoomAlias
}

// ParseRoomReference parses a room ID or room alias string.
func ParseRoomReference(raw string) (RoomReference, error) {
	if raw == "" {
		return RoomReference{}, fmt.Errorf("empty room reference")
	}
	switch raw[0] {
	case '!':
		roomID, err := ParseRoomID(raw)
		if err != nil {
			return RoomReference{}, err
		}
		return RoomReference{roomID: roomID}, nil
	case '#':
		alias, err := ParseRoomAlias(raw)
		if err != nil {
			return RoomReference{}, err
		}
		return RoomReference{alias: alias}, nil
	default:
		return RoomReference{}, fmt.Errorf("room reference must start with '!' or '#': %q", raw)
	}
}

// MustParseRoomReference is like ParseRoomReference but panics on error.
func MustParseRoomReference(raw string) RoomReference {
	reference, err := ParseRoomReference(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseRoomReference(%q): %v", raw, err))
	}
	return reference
}

// RoomReferenceFromID wraps an already-validated RoomID.
func RoomReferenceFromID(roomID RoomID) RoomReference {
	return RoomReference{roomID: roomID}
}

// RoomReferenceFromAlias wraps an already-validated RoomAlias.
func RoomReferenceFromAlias(alias RoomAlias) RoomReference {
	return RoomReference{alias: alias}
}

// RoomID returns the room ID and true if the reference names a room
// directly.
func (r RoomReference) RoomID() (RoomID, bool) {
	return r.roomID, !r.roomID.IsZero()
}

// Alias returns the alias and true if the reference needs resolving.
func (r RoomReference) Alias() (RoomAlias, bool) {
	return r.alias, !r.alias.IsZero()
}

// IsAlias reports whether the reference is a room alias.
func (r RoomReference) IsAlias() bool { return !r.alias.IsZero() }

// IsZero reports whether the reference is the zero value.
func (r RoomReference) IsZero() bool { return r.roomID.IsZero() && r.alias.IsZero() }

// String returns the identifier string.
func (r RoomReference) String() string {
	if !r.alias.IsZero() {
		return r.alias.String()
	}
	return r.roomID.String()
}

// MarshalText implements encoding.TextMarshaler.
func (r RoomReference) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (r *RoomReference) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = RoomReference{}
		return nil
	}
	parsed, err := ParseRoomReference(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
