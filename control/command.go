// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"unicode/utf8"

	"github.com/archlinuxcn/matrixbot/lib/ref"
)

// Command names carried in the "cmd" field.
const (
	CommandSendMessage        = "send_message"
	CommandDeleteUserMessages = "delete_user_messages"
)

// Command is one decoded control request. The set of implementations is
// closed: [SendMessage] and [DeleteUserMessages].
type Command interface {
	// Name returns the wire name of the command.
	Name() string

	sealedCommand()
}

// SendMessage sends a message to a room, optionally as a reply and/or
// as an edit of an earlier event.
type SendMessage struct {
	Target ref.RoomReference

	// Content is the plain-text body.
	Content string

	// RichContent is an optional HTML rendering of Content.
	RichContent string

	// ReplyTo, when set, names the event being replied to.
	ReplyTo ref.EventID

	// Replaces, when set, names the event this message edits.
	Replaces ref.EventID

	// WantEventID asks for a {"id":...} response after a successful send.
	WantEventID bool
}

// DeleteUserMessages redacts the most recent messages of User in Target.
type DeleteUserMessages struct {
	Target ref.RoomReference
	User   ref.UserID
}

func (SendMessage) Name() string        { return CommandSendMessage }
func (DeleteUserMessages) Name() string { return CommandDeleteUserMessages }

func (SendMessage) sealedCommand()        {}
func (DeleteUserMessages) sealedCommand() {}

// Response is the only frame the server writes.
type Response struct {
	ID ref.EventID `json:"id"`
}

// Wire forms. Pointers distinguish absent required fields from zero
// values.
type (
	sendMessageWire struct {
		Cmd         string             `json:"cmd"`
		Target      *ref.RoomReference `json:"target"`
		Content     *string            `json:"content"`
		RichContent string             `json:"rich_content,omitempty"`
		ReplyTo     ref.EventID        `json:"reply_to,omitzero"`
		Replaces    ref.EventID        `json:"replaces,omitzero"`
		WantEventID bool               `json:"want_event_id,omitempty"`
	}

	deleteUserMessagesWire struct {
		Cmd    string             `json:"cmd"`
		Target *ref.RoomReference `json:"target"`
		User   *ref.UserID        `json:"user"`
	}
)

// DecodeCommand parses one frame payload. Every failure is a
// *ProtocolError: invalid UTF-8, malformed JSON, a missing or unknown
// "cmd", unknown fields, missing required fields, malformed
// identifiers, or data after the JSON object.
func DecodeCommand(payload []byte) (Command, error) {
	command, err := decodeCommand(payload)
	if err != nil {
		return nil, &ProtocolError{Raw: payload, Err: err}
	}
	return command, nil
}

func decodeCommand(payload []byte) (Command, error) {
	if !utf8.Valid(payload) {
		return nil, errors.New("payload is not valid UTF-8")
	}

	// encoding/json matches struct fields case-insensitively, so the key
	// set is checked exactly before any typed decoding.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("command is not a JSON object")
	}
	rawCmd, ok := fields["cmd"]
	if !ok {
		return nil, errors.New(`missing "cmd" field`)
	}
	var cmd string
	if err := json.Unmarshal(rawCmd, &cmd); err != nil {
		return nil, fmt.Errorf(`"cmd": %w`, err)
	}

	switch cmd {
	case CommandSendMessage:
		if err := checkFields(cmd, fields, sendMessageFields); err != nil {
			return nil, err
		}
		var wire sendMessageWire
		if err := decodeStrict(payload, &wire); err != nil {
			return nil, err
		}
		if wire.Target == nil || wire.Target.IsZero() {
			return nil, errors.New(`send_message: missing "target"`)
		}
		if wire.Content == nil {
			return nil, errors.New(`send_message: missing "content"`)
		}
		return SendMessage{
			Target:      *wire.Target,
			Content:     *wire.Content,
			RichContent: wire.RichContent,
			ReplyTo:     wire.ReplyTo,
			Replaces:    wire.Replaces,
			WantEventID: wire.WantEventID,
		}, nil

	case CommandDeleteUserMessages:
		if err := checkFields(cmd, fields, deleteUserMessagesFields); err != nil {
			return nil, err
		}
		var wire deleteUserMessagesWire
		if err := decodeStrict(payload, &wire); err != nil {
			return nil, err
		}
		if wire.Target == nil || wire.Target.IsZero() {
			return nil, errors.New(`delete_user_messages: missing "target"`)
		}
		if wire.User == nil || wire.User.IsZero() {
			return nil, errors.New(`delete_user_messages: missing "user"`)
		}
		return DeleteUserMessages{Target: *wire.Target, User: *wire.User}, nil

	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

var (
	sendMessageFields = []string{
		"cmd", "target", "content", "rich_content", "reply_to", "replaces", "want_event_id",
	}
	deleteUserMessagesFields = []string{"cmd", "target", "user"}
)

// checkFields rejects any key of fields outside allowed, compared
// byte for byte.
func checkFields(cmd string, fields map[string]json.RawMessage, allowed []string) error {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if !slices.Contains(allowed, key) {
			return fmt.Errorf("%s: unknown field %q", cmd, key)
		}
	}
	return nil
}

// decodeStrict decodes exactly one JSON value into target, rejecting
// unknown fields and trailing data.
func decodeStrict(payload []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after command object")
	}
	return nil
}

// EncodeCommand produces the JSON payload for command. It is the inverse
// of DecodeCommand.
func EncodeCommand(command Command) ([]byte, error) {
	switch command := command.(type) {
	case SendMessage:
		if command.Target.IsZero() {
			return nil, errors.New("control: send_message without target")
		}
		content := command.Content
		target := command.Target
		return json.Marshal(sendMessageWire{
			Cmd:         CommandSendMessage,
			Target:      &target,
			Content:     &content,
			RichContent: command.RichContent,
			ReplyTo:     command.ReplyTo,
			Replaces:    command.Replaces,
			WantEventID: command.WantEventID,
		})
	case DeleteUserMessages:
		if command.Target.IsZero() || command.User.IsZero() {
			return nil, errors.New("control: delete_user_messages needs target and user")
		}
		target, user := command.Target, command.User
		return json.Marshal(deleteUserMessagesWire{
			Cmd:    CommandDeleteUserMessages,
			Target: &target,
			User:   &user,
		})
	default:
		return nil, fmt.Errorf("control: cannot encode command type %T", command)
	}
}
