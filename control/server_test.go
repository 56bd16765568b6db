// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/lib/testutil"
	"github.com/archlinuxcn/matrixbot/messaging"
)

// startServer runs a control server on a fresh socket and returns its
// path. The server is stopped when the test ends.
func startServer(t *testing.T, session Session) string {
	t.Helper()
	path := testutil.SocketPath(t, "control.sock")
	listener, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	server, err := NewServer(ServerConfig{
		Listener:     listener,
		Dispatcher:   newTestDispatcher(t, session),
		MaxFrameSize: 4096,
		Logger:       discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Serve to return"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return path
}

func dialRaw(t *testing.T, path string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeRaw(t *testing.T, conn net.Conn, payload string) {
	t.Helper()
	if err := WriteFrame(conn, []byte(payload)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
}

func readResponse(t *testing.T, conn net.Conn) Response {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := ReadFrame(conn, 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	var response Response
	if err := json.Unmarshal(frame, &response); err != nil {
		t.Fatalf("decoding response %s: %v", frame, err)
	}
	return response
}

func TestServerSendWithoutResponse(t *testing.T) {
	session := newFakeSession()
	room := session.addRoom("!abc:example.org")
	path := startServer(t, session)
	conn := dialRaw(t, path)

	writeRaw(t, conn, `{"cmd":"send_message","target":"!abc:example.org","content":"hi"}`)
	// A second command that does want a response: the only frame read
	// back must belong to it.
	writeRaw(t, conn, `{"cmd":"send_message","target":"!abc:example.org","content":"second","want_event_id":true}`)

	response := readResponse(t, conn)
	if response.ID.String() != "$sent2" {
		t.Errorf("response id = %v, want $sent2", response.ID)
	}
	sent := room.sentMessages()
	if len(sent) != 2 || sent[0].Body != "hi" || sent[1].Body != "second" {
		t.Errorf("sent = %+v, want hi then second", sent)
	}
}

func TestServerMalformedFramesKeepConnection(t *testing.T) {
	session := newFakeSession()
	session.addRoom("!abc:example.org")
	path := startServer(t, session)
	conn := dialRaw(t, path)

	for _, payload := range []string{
		"\xff\xfe",
		`not json`,
		`{"cmd":"reboot"}`,
		`{"cmd":"send_message","target":"!abc:example.org","content":"x","extra":1}`,
		`{"cmd":"send_message","target":"!missing:example.org","content":"x","want_event_id":true}`,
	} {
		writeRaw(t, conn, payload)
	}
	writeRaw(t, conn, `{"cmd":"send_message","target":"!abc:example.org","content":"ok","want_event_id":true}`)

	response := readResponse(t, conn)
	if response.ID.String() != "$sent1" {
		t.Errorf("response id = %v, want $sent1 (no frames for the bad commands)", response.ID)
	}
}

func TestServerOversizeFrameClosesConnection(t *testing.T) {
	session := newFakeSession()
	room := session.addRoom("!abc:example.org")
	path := startServer(t, session)

	conn := dialRaw(t, path)
	header := []byte{0, 0, 0x20, 0} // 8192 bytes, over the 4096 limit
	if _, err := conn.Write(header); err != nil {
		t.Fatalf("Write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := ReadFrame(conn, 0); err == nil {
		t.Fatal("connection still open after an oversize frame")
	}

	// Other connections are unaffected.
	other := dialRaw(t, path)
	writeRaw(t, other, `{"cmd":"send_message","target":"!abc:example.org","content":"hi","want_event_id":true}`)
	readResponse(t, other)
	if len(room.sentMessages()) != 1 {
		t.Errorf("sent %d messages, want 1", len(room.sentMessages()))
	}
}

func TestServerConcurrentConnections(t *testing.T) {
	session := newFakeSession()
	room := session.addRoom("!abc:example.org")
	path := startServer(t, session)

	// An idle connection must not hold up the others.
	dialRaw(t, path)

	const clients = 8
	errs := make(chan error, clients)
	for range clients {
		go func() {
			client, err := Dial(context.Background(), path)
			if err != nil {
				errs <- err
				return
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			response, err := client.Send(ctx, SendMessage{
				Target:      ref.MustParseRoomReference("!abc:example.org"),
				Content:     "hi",
				WantEventID: true,
			})
			if err == nil && response == nil {
				err = errors.New("no response")
			}
			errs <- err
		}()
	}
	for range clients {
		if err := testutil.RequireReceive(t, errs, 10*time.Second, "waiting for client"); err != nil {
			t.Errorf("client: %v", err)
		}
	}
	if len(room.sentMessages()) != clients {
		t.Errorf("sent %d messages, want %d", len(room.sentMessages()), clients)
	}
}

// expiringContext reports a deadline but is never cancelled itself, so
// only the connection deadline derived from it can end a request.
type expiringContext struct {
	context.Context
	deadline time.Time
}

func (c expiringContext) Deadline() (time.Time, bool) { return c.deadline, true }

func TestClientSendReportsConnectionDeadline(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() { serverSide.Close() })
	go io.Copy(io.Discard, serverSide)

	client := &Client{conn: clientSide}
	defer client.Close()

	ctx := expiringContext{Context: context.Background(), deadline: time.Now().Add(50 * time.Millisecond)}
	command := SendMessage{Target: ref.MustParseRoomReference("!abc:example.org"), Content: "hi", WantEventID: true}
	response, err := client.Send(ctx, command)
	if response != nil {
		t.Errorf("response = %+v, want nil", response)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send error = %v, want context.DeadlineExceeded", err)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("Send error = %v, want the connection timeout wrapped too", err)
	}
}

func TestClientPurgeThenSend(t *testing.T) {
	session := newFakeSession()
	room := session.addRoom("!abc:example.org")
	room.history = []messaging.Event{textEvent("$s1", spammer, "spam")}
	path := startServer(t, session)

	client, err := Dial(context.Background(), path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	target := ref.MustParseRoomReference("!abc:example.org")

	response, err := client.Send(ctx, DeleteUserMessages{Target: target, User: ref.MustParseUserID(spammer)})
	if err != nil || response != nil {
		t.Fatalf("Send(delete_user_messages) = %+v, %v; want nil, nil", response, err)
	}
	response, err = client.Send(ctx, SendMessage{Target: target, Content: "cleaned", WantEventID: true})
	if err != nil {
		t.Fatalf("Send(send_message): %v", err)
	}
	if response == nil || response.ID.IsZero() {
		t.Fatalf("response = %+v, want an event id", response)
	}

	// Frames are handled in order, so the purge finished before the
	// send that produced the response.
	if got := room.redactedEvents(); len(got) != 1 || got[0].String() != "$s1" {
		t.Errorf("redacted = %v, want [$s1]", got)
	}
}

func TestServerShutdownClosesConnections(t *testing.T) {
	session := newFakeSession()
	path := testutil.SocketPath(t, "control.sock")
	listener, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	server, err := NewServer(ServerConfig{
		Listener:   listener,
		Dispatcher: newTestDispatcher(t, session),
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	conn := dialRaw(t, path)
	writeRaw(t, conn, `{"cmd":"send_message","target":"!missing:example.org","content":"x"}`)

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Serve to return"); err != nil {
		t.Errorf("Serve = %v, want nil after cancellation", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := ReadFrame(conn, 0); err == nil {
		t.Error("connection still open after shutdown")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket file still present after shutdown: %v", err)
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	path := testutil.SocketPath(t, "stale.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	listener, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen over stale file: %v", err)
	}
	listener.Close()
}

func TestListenAbstract(t *testing.T) {
	name := fmt.Sprintf("@%s-%d", testutil.UniqueID("matrixbot-test"), os.Getpid())
	if !IsAbstract(name) {
		t.Fatalf("IsAbstract(%q) = false", name)
	}
	listener, err := Listen(name)
	if err != nil {
		t.Fatalf("Listen(%q): %v", name, err)
	}
	defer listener.Close()

	accepted := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
		accepted <- err
	}()

	conn, err := net.Dial("unix", name)
	if err != nil {
		t.Fatalf("Dial(%q): %v", name, err)
	}
	conn.Close()
	if err := testutil.RequireReceive(t, accepted, 5*time.Second, "waiting for accept"); err != nil {
		t.Errorf("Accept: %v", err)
	}
}

func TestListenRejectsEmptyPath(t *testing.T) {
	if _, err := Listen(""); err == nil {
		t.Error("Listen accepted an empty path")
	}
}
