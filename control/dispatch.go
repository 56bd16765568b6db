// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Session is the bot's Matrix session. Required.
	Session Session

	// Purge configures delete_user_messages. Its Logger and Metrics
	// default to the dispatcher's.
	Purge PurgeConfig

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics counts frames and commands when non-nil.
	Metrics *Metrics
}

// Dispatcher executes decoded commands against the session. It holds no
// per-command state and is shared by all connections.
type Dispatcher struct {
	resolver *Resolver
	purger   *Purger
	logger   *slog.Logger
	metrics  *Metrics
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Session == nil {
		return nil, errors.New("control: Session is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	purgeConfig := config.Purge
	if purgeConfig.Logger == nil {
		purgeConfig.Logger = logger
	}
	if purgeConfig.Metrics == nil {
		purgeConfig.Metrics = config.Metrics
	}
	return &Dispatcher{
		resolver: NewResolver(config.Session),
		purger:   NewPurger(purgeConfig),
		logger:   logger,
		metrics:  config.Metrics,
	}, nil
}

// Execute runs command and returns the response to write, if any.
func (d *Dispatcher) Execute(ctx context.Context, command Command) (*Response, error) {
	switch command := command.(type) {
	case SendMessage:
		return d.sendMessage(ctx, command)
	case DeleteUserMessages:
		return d.deleteUserMessages(ctx, command)
	default:
		return nil, fmt.Errorf("control: unhandled command type %T", command)
	}
}

// HandleFrame decodes and executes one frame payload. Every failure is
// logged here and none is returned: the caller only learns whether a
// response must be written.
func (d *Dispatcher) HandleFrame(ctx context.Context, payload []byte) *Response {
	command, err := DecodeCommand(payload)
	if err != nil {
		d.metrics.frame(frameRejected)
		d.logger.Error("bad control message",
			"raw", quoteRaw(payload),
			"error", err,
		)
		return nil
	}
	d.metrics.frame(frameAccepted)

	response, err := d.Execute(ctx, command)
	d.metrics.command(command.Name(), err)
	if err != nil {
		d.logCommandError(command, err)
		return nil
	}
	return response
}

func (d *Dispatcher) logCommandError(command Command, err error) {
	attributes := []any{"cmd", command.Name(), "error", err}
	switch command := command.(type) {
	case SendMessage:
		attributes = append(attributes, "target", command.Target)
	case DeleteUserMessages:
		attributes = append(attributes, "target", command.Target, "user", command.User)
	}

	var roomNotFound *RoomNotFoundError
	var resolution *ResolutionError
	switch {
	case errors.As(err, &roomNotFound):
		d.logger.Warn("room not found", attributes...)
	case errors.As(err, &resolution):
		d.logger.Warn("room alias lookup failed", attributes...)
	default:
		d.logger.Error("control command failed", attributes...)
	}
}

// maxLoggedRaw bounds the raw payload echoed into logs.
const maxLoggedRaw = 1024

// quoteRaw renders an undecodable payload as a quoted Go string so that
// invalid UTF-8 survives into the log.
func quoteRaw(payload []byte) string {
	if len(payload) > maxLoggedRaw {
		return strconv.Quote(string(payload[:maxLoggedRaw])) + "..."
	}
	return strconv.Quote(string(payload))
}
