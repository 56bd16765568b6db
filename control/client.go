// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// dialTimeout bounds connecting to the control socket.
const dialTimeout = 5 * time.Second

// Client sends commands over one control connection. Requests are
// serialized so that a response is always read by the request that
// asked for it.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the control socket at path. A path starting with "@"
// names an abstract-namespace socket.
func Dial(ctx context.Context, path string) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("control: dialing %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// Send writes command and, for a send_message with WantEventID, waits
// for the response. Otherwise the response is nil: the server writes
// nothing back, including on failure, which is only visible in the
// bot's log. A failed send that wanted an event ID therefore leaves Send
// waiting until ctx ends.
func (c *Client) Send(ctx context.Context, command Command) (*Response, error) {
	payload, err := EncodeCommand(command)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := WriteFrame(c.conn, payload); err != nil {
		return nil, connectionError(ctx, "writing "+command.Name(), err)
	}

	send, ok := command.(SendMessage)
	if !ok || !send.WantEventID {
		return nil, nil
	}

	frame, err := ReadFrame(c.conn, DefaultMaxFrameSize)
	if err != nil {
		return nil, connectionError(ctx, "reading response", err)
	}
	var response Response
	if err := json.Unmarshal(frame, &response); err != nil {
		return nil, fmt.Errorf("control: decoding response: %w", err)
	}
	return &response, nil
}

// connectionError reports a failed read or write. The connection
// deadline mirrors ctx's deadline and can expire before ctx's own timer
// does, so an expired deadline is reported as context.DeadlineExceeded.
func connectionError(ctx context.Context, operation string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("control: %s: %w (%w)", operation, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("control: %s: %w", operation, err)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
