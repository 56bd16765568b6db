// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/archlinuxcn/matrixbot/messaging"
)

// syncFilter keeps /sync responses down to room membership: the bot acts
// on rooms only through the control channel and needs no timeline.
const syncFilter = `{"presence":{"not_types":["*"]},"account_data":{"not_types":["*"]},` +
	`"room":{"timeline":{"limit":1},"state":{"types":["m.room.member"],"lazy_load_members":true},` +
	`"ephemeral":{"not_types":["*"]},"account_data":{"not_types":["*"]}}}`

func (b *Bot) syncOptions(longPoll bool) messaging.SyncOptions {
	options := messaging.SyncOptions{
		Since:       b.sinceToken,
		Filter:      syncFilter,
		SetPresence: messaging.PresenceUnavailable,
	}
	if longPoll {
		options.Timeout = int(b.syncTimeout / time.Millisecond)
		options.SetTimeout = true
	}
	return options
}

// Run long-polls /sync until ctx is cancelled, keeping the joined-room
// set current. Transient failures are retried with exponential backoff
// from one second up to MaxBackoff. A rejected access token ends the
// loop with an error, since no retry can succeed.
func (b *Bot) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		response, err := b.session.Sync(ctx, b.syncOptions(true))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if messaging.IsAuthError(err) {
				return fmt.Errorf("sync: access token rejected: %w", err)
			}
			b.logger.Error("sync failed, retrying", "error", err, "backoff", backoff)
			b.session.Client().CloseIdleConnections()
			select {
			case <-ctx.Done():
				return nil
			case <-b.clock.After(backoff):
			}
			backoff *= 2
			if backoff > b.maxBackoff {
				backoff = b.maxBackoff
			}
			continue
		}

		backoff = time.Second
		b.applySync(response)
	}
}
