// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/messaging"
)

// fakeSession is an in-memory Session.
type fakeSession struct {
	mu           sync.Mutex
	aliases      map[ref.RoomAlias]ref.RoomID
	aliasErr     error
	aliasLookups int
	rooms        map[ref.RoomID]*fakeRoom
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		aliases: make(map[ref.RoomAlias]ref.RoomID),
		rooms:   make(map[ref.RoomID]*fakeRoom),
	}
}

func (s *fakeSession) addRoom(raw string) *fakeRoom {
	room := &fakeRoom{
		id:     ref.MustParseRoomID(raw),
		events: make(map[ref.EventID]messaging.Event),
	}
	s.mu.Lock()
	s.rooms[room.id] = room
	s.mu.Unlock()
	return room
}

func (s *fakeSession) ResolveAlias(_ context.Context, alias ref.RoomAlias) (ref.RoomID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliasLookups++
	if s.aliasErr != nil {
		return ref.RoomID{}, s.aliasErr
	}
	roomID, ok := s.aliases[alias]
	if !ok {
		return ref.RoomID{}, fmt.Errorf("alias %s not found", alias)
	}
	return roomID, nil
}

func (s *fakeSession) Room(roomID ref.RoomID) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room, true
}

func (s *fakeSession) lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliasLookups
}

// fakeRoom records every call made on it.
type fakeRoom struct {
	id ref.RoomID

	mu         sync.Mutex
	events     map[ref.EventID]messaging.Event
	history    []messaging.Event
	historyErr error
	sendErr    error
	redactErr  map[ref.EventID]error
	nextEvent  int

	queries  []HistoryQuery
	sent     []messaging.MessageContent
	redacted []ref.EventID
	reasons  []string
	attempts []ref.EventID
}

func (r *fakeRoom) ID() ref.RoomID { return r.id }

func (r *fakeRoom) Event(_ context.Context, eventID ref.EventID) (messaging.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return messaging.Event{}, fmt.Errorf("event %s not found", eventID)
	}
	return event, nil
}

func (r *fakeRoom) Messages(_ context.Context, query HistoryQuery) ([]messaging.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.historyErr != nil {
		return nil, r.historyErr
	}
	return r.history, nil
}

func (r *fakeRoom) Send(_ context.Context, content messaging.MessageContent) (ref.EventID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return ref.EventID{}, r.sendErr
	}
	r.sent = append(r.sent, content)
	r.nextEvent++
	return ref.MustParseEventID(fmt.Sprintf("$sent%d", r.nextEvent)), nil
}

func (r *fakeRoom) Redact(_ context.Context, eventID ref.EventID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, eventID)
	if err := r.redactErr[eventID]; err != nil {
		return err
	}
	r.redacted = append(r.redacted, eventID)
	r.reasons = append(r.reasons, reason)
	return nil
}

func (r *fakeRoom) sentMessages() []messaging.MessageContent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messaging.MessageContent(nil), r.sent...)
}

func (r *fakeRoom) redactedEvents() []ref.EventID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ref.EventID(nil), r.redacted...)
}

// textEvent builds an original m.room.message event.
func textEvent(eventID, sender, body string) messaging.Event {
	return messaging.Event{
		EventID: ref.MustParseEventID(eventID),
		Type:    messaging.EventTypeRoomMessage,
		Sender:  ref.MustParseUserID(sender),
		Content: map[string]any{"msgtype": "m.text", "body": body},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t interface{ Fatalf(string, ...any) }, session Session) *Dispatcher {
	dispatcher, err := NewDispatcher(DispatcherConfig{Session: session, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return dispatcher
}
