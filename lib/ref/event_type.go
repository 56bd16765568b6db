// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix event type ("m.room.message",
// "m.room.redaction", ...). A named string rather than a struct:
// event types need no validation, only compile-time separation from
// other string parameters.
type EventType string

// String returns the event type string.
func (t EventType) String() string { return string(t) }
