// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/messaging"
)

// Purge defaults.
const (
	DefaultHistoryPageSize = 10
	DefaultRedactionReason = "spam"
)

// PurgeConfig configures a Purger.
type PurgeConfig struct {
	// PageSize is the number of history events examined per sweep.
	// Zero means DefaultHistoryPageSize.
	PageSize int

	// Reason is attached to every redaction. Empty means
	// DefaultRedactionReason.
	Reason string

	// Limiter paces redactions when non-nil.
	Limiter *rate.Limiter

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics counts redactions when non-nil.
	Metrics *Metrics
}

// Purger removes a user's recent messages from a room. Each Purge call
// examines a single backward history page; calling it again reaches
// further back as earlier matches are gone.
type Purger struct {
	pageSize int
	reason   string
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *Metrics
}

// NewPurger creates a Purger.
func NewPurger(config PurgeConfig) *Purger {
	purger := &Purger{
		pageSize: config.PageSize,
		reason:   config.Reason,
		limiter:  config.Limiter,
		logger:   config.Logger,
		metrics:  config.Metrics,
	}
	if purger.pageSize <= 0 {
		purger.pageSize = DefaultHistoryPageSize
	}
	if purger.reason == "" {
		purger.reason = DefaultRedactionReason
	}
	if purger.logger == nil {
		purger.logger = slog.Default()
	}
	return purger
}

// PurgeResult summarizes one sweep.
type PurgeResult struct {
	// Examined is the number of events the server returned.
	Examined int

	// Redacted lists the events redacted, in page order.
	Redacted []ref.EventID

	// SkippedType counts events that were not m.room.message.
	SkippedType int

	// SkippedSender counts events from other senders that the server
	// filter let through.
	SkippedSender int

	// SkippedKind counts messages that were edits, already redacted, or
	// undecodable.
	SkippedKind int
}

// Purge redacts user's original messages among the newest page of the
// room's history. The first failed redaction stops the sweep; the
// returned result still lists what was already redacted.
func (p *Purger) Purge(ctx context.Context, room Room, user ref.UserID) (PurgeResult, error) {
	var result PurgeResult

	page, err := room.Messages(ctx, HistoryQuery{Sender: user, Limit: p.pageSize})
	if err != nil {
		return result, &RemoteActionError{Action: "fetch history", RoomID: room.ID(), Err: err}
	}
	result.Examined = len(page)

	for _, event := range page {
		if event.Type != messaging.EventTypeRoomMessage {
			result.SkippedType++
			continue
		}
		if event.Sender != user {
			result.SkippedSender++
			p.logger.Warn("history filter returned another sender's event",
				"room_id", room.ID(),
				"event_id", event.EventID,
				"sender", event.Sender,
				"user", user,
			)
			continue
		}
		if kind := messaging.ClassifyMessage(event); kind != messaging.OriginalMessage {
			result.SkippedKind++
			continue
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return result, fmt.Errorf("control: waiting to redact %s: %w", event.EventID, err)
			}
		}

		if err := room.Redact(ctx, event.EventID, p.reason); err != nil {
			p.metrics.redaction(false)
			var matrixErr *messaging.MatrixError
			if errors.As(err, &matrixErr) && matrixErr.Code == messaging.ErrCodeLimitExceeded {
				p.logger.Warn("redaction rate limited by homeserver",
					"room_id", room.ID(),
					"event_id", event.EventID,
					"retry_after_ms", matrixErr.RetryAfterMillis,
				)
			}
			return result, &RemoteActionError{Action: "redact", RoomID: room.ID(), EventID: event.EventID, Err: err}
		}
		p.metrics.redaction(true)
		result.Redacted = append(result.Redacted, event.EventID)
	}
	return result, nil
}

// deleteUserMessages runs a delete_user_messages command.
func (d *Dispatcher) deleteUserMessages(ctx context.Context, command DeleteUserMessages) (*Response, error) {
	room, err := d.resolver.Room(ctx, command.Target)
	if err != nil {
		return nil, err
	}

	result, err := d.purger.Purge(ctx, room, command.User)
	if err != nil {
		return nil, fmt.Errorf("purge stopped after %d redactions: %w", len(result.Redacted), err)
	}

	d.logger.Info("purged user messages",
		"room_id", room.ID(),
		"user", command.User,
		"examined", result.Examined,
		"redacted", len(result.Redacted),
		"skipped_type", result.SkippedType,
		"skipped_sender", result.SkippedSender,
		"skipped_kind", result.SkippedKind,
	)
	return nil, nil
}
