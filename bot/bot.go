// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/archlinuxcn/matrixbot/control"
	"github.com/archlinuxcn/matrixbot/lib/clock"
	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/messaging"
)

// Config configures a Bot.
type Config struct {
	// Session is the authenticated Matrix session. The Bot does not
	// close it. Required.
	Session *messaging.DirectSession

	// SyncTimeout is the /sync long-poll timeout. Default: 600 seconds.
	SyncTimeout time.Duration

	// MaxBackoff caps the delay between failed /sync attempts.
	// Default: 30 seconds.
	MaxBackoff time.Duration

	// Clock drives the retry backoff. If nil, clock.Real() is used.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Bot is the shared session handle. It is safe for concurrent use: the
// control server reads the joined-room set while the sync loop updates
// it.
type Bot struct {
	session     *messaging.DirectSession
	syncTimeout time.Duration
	maxBackoff  time.Duration
	clock       clock.Clock
	logger      *slog.Logger

	mu     sync.RWMutex
	joined map[ref.RoomID]struct{}

	// sinceToken is only touched by the goroutine running the sync.
	sinceToken string
}

var _ control.Session = (*Bot)(nil)

// New creates a Bot. Call Start before serving control connections.
func New(config Config) (*Bot, error) {
	if config.Session == nil {
		return nil, errors.New("bot: Session is required")
	}
	b := &Bot{
		session:     config.Session,
		syncTimeout: config.SyncTimeout,
		maxBackoff:  config.MaxBackoff,
		clock:       config.Clock,
		logger:      config.Logger,
		joined:      make(map[ref.RoomID]struct{}),
	}
	if b.syncTimeout <= 0 {
		b.syncTimeout = 600 * time.Second
	}
	if b.maxBackoff <= 0 {
		b.maxBackoff = 30 * time.Second
	}
	if b.clock == nil {
		b.clock = clock.Real()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b, nil
}

// UserID returns the bot's user ID.
func (b *Bot) UserID() ref.UserID {
	return b.session.UserID()
}

// Start validates the access token, loads the joined rooms and performs
// the first sync. Afterwards Room answers for every room the bot is in.
func (b *Bot) Start(ctx context.Context) error {
	userID, err := b.session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("validating access token: %w", err)
	}
	if userID != b.session.UserID() {
		return fmt.Errorf("access token belongs to %s, expected %s", userID, b.session.UserID())
	}

	rooms, err := b.session.JoinedRooms(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	for _, roomID := range rooms {
		b.joined[roomID] = struct{}{}
	}
	b.mu.Unlock()

	b.logger.Info("syncing once", "joined_rooms", len(rooms))
	response, err := b.session.Sync(ctx, b.syncOptions(false))
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	b.applySync(response)
	b.logger.Info("synced", "joined_rooms", len(b.JoinedRooms()))
	return nil
}

// ResolveAlias looks alias up in the room directory.
func (b *Bot) ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error) {
	return b.session.ResolveAlias(ctx, alias)
}

// Room returns the handle for a joined room.
func (b *Bot) Room(roomID ref.RoomID) (control.Room, bool) {
	b.mu.RLock()
	_, ok := b.joined[roomID]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &room{session: b.session, id: roomID}, true
}

// JoinedRooms returns the joined rooms in sorted order.
func (b *Bot) JoinedRooms() []ref.RoomID {
	b.mu.RLock()
	rooms := make([]ref.RoomID, 0, len(b.joined))
	for roomID := range b.joined {
		rooms = append(rooms, roomID)
	}
	b.mu.RUnlock()
	slices.SortFunc(rooms, func(x, y ref.RoomID) int {
		return strings.Compare(x.String(), y.String())
	})
	return rooms
}

// applySync records the rooms the bot joined or left. A room that was
// left and joined again within one window appears in both sections, so
// leaves are applied first.
func (b *Bot) applySync(response *messaging.SyncResponse) {
	if response.NextBatch != "" {
		b.sinceToken = response.NextBatch
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for roomID := range response.Rooms.Leave {
		if _, ok := b.joined[roomID]; ok {
			b.logger.Info("left room", "room_id", roomID)
			delete(b.joined, roomID)
		}
	}
	for roomID := range response.Rooms.Join {
		if _, ok := b.joined[roomID]; !ok {
			b.logger.Info("joined room", "room_id", roomID)
			b.joined[roomID] = struct{}{}
		}
	}
	for roomID := range response.Rooms.Invite {
		b.logger.Info("ignoring room invite", "room_id", roomID)
	}
}

// room is a joined room reached through the bot's session.
type room struct {
	session *messaging.DirectSession
	id      ref.RoomID
}

func (r *room) ID() ref.RoomID { return r.id }

func (r *room) Event(ctx context.Context, eventID ref.EventID) (messaging.Event, error) {
	return r.session.GetEvent(ctx, r.id, eventID)
}

func (r *room) Messages(ctx context.Context, query control.HistoryQuery) ([]messaging.Event, error) {
	options := messaging.RoomMessagesOptions{
		Direction: "b",
		Limit:     query.Limit,
	}
	if !query.Sender.IsZero() {
		options.Filter = &messaging.RoomEventFilter{Senders: []ref.UserID{query.Sender}}
	}
	response, err := r.session.RoomMessages(ctx, r.id, options)
	if err != nil {
		return nil, err
	}
	return response.Chunk, nil
}

func (r *room) Send(ctx context.Context, content messaging.MessageContent) (ref.EventID, error) {
	return r.session.SendMessage(ctx, r.id, content)
}

func (r *room) Redact(ctx context.Context, eventID ref.EventID, reason string) error {
	_, err := r.session.Redact(ctx, r.id, eventID, reason)
	return err
}
