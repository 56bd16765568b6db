// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"strings"
	"testing"

	"github.com/archlinuxcn/matrixbot/lib/ref"
)

func TestCommandRoundTrip(t *testing.T) {
	alias := ref.MustParseRoomReference("#archlinuxcn:example.org")
	roomID := ref.MustParseRoomReference("!abc:example.org")
	replyTo := ref.MustParseEventID("$reply")
	replaces := ref.MustParseEventID("$edited")

	var commands []Command
	for _, target := range []ref.RoomReference{alias, roomID} {
		for _, rich := range []string{"", "<b>hi</b>"} {
			for _, reply := range []ref.EventID{{}, replyTo} {
				for _, replace := range []ref.EventID{{}, replaces} {
					for _, want := range []bool{false, true} {
						commands = append(commands, SendMessage{
							Target:      target,
							Content:     "hi",
							RichContent: rich,
							ReplyTo:     reply,
							Replaces:    replace,
							WantEventID: want,
						})
					}
				}
			}
		}
		commands = append(commands, DeleteUserMessages{
			Target: target,
			User:   ref.MustParseUserID("@spammer:example.org"),
		})
	}
	commands = append(commands, SendMessage{Target: roomID, Content: ""})

	for _, command := range commands {
		payload, err := EncodeCommand(command)
		if err != nil {
			t.Fatalf("EncodeCommand(%+v): %v", command, err)
		}
		decoded, err := DecodeCommand(payload)
		if err != nil {
			t.Fatalf("DecodeCommand(%s): %v", payload, err)
		}
		if decoded != command {
			t.Errorf("round trip of %s: got %+v, want %+v", payload, decoded, command)
		}
	}
}

func TestDecodeCommandWireNames(t *testing.T) {
	command, err := DecodeCommand([]byte(`{"cmd":"send_message","target":"#room:example.org",` +
		`"content":"hi","rich_content":"<i>hi</i>","reply_to":"$a","replaces":"$b","want_event_id":true}`))
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	send, ok := command.(SendMessage)
	if !ok {
		t.Fatalf("command type = %T, want SendMessage", command)
	}
	if alias, ok := send.Target.Alias(); !ok || alias.String() != "#room:example.org" {
		t.Errorf("Target = %v, want alias #room:example.org", send.Target)
	}
	if send.Content != "hi" || send.RichContent != "<i>hi</i>" {
		t.Errorf("content = %q / %q", send.Content, send.RichContent)
	}
	if send.ReplyTo.String() != "$a" || send.Replaces.String() != "$b" || !send.WantEventID {
		t.Errorf("optional fields = %+v", send)
	}

	command, err = DecodeCommand([]byte(`{"cmd":"delete_user_messages","target":"!abc:example.org","user":"@spam:example.org"}`))
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	purge, ok := command.(DeleteUserMessages)
	if !ok {
		t.Fatalf("command type = %T, want DeleteUserMessages", command)
	}
	if purge.User.String() != "@spam:example.org" {
		t.Errorf("User = %v", purge.User)
	}
	if roomID, ok := purge.Target.RoomID(); !ok || roomID.String() != "!abc:example.org" {
		t.Errorf("Target = %v", purge.Target)
	}
}

func TestEncodeCommandOmitsUnsetFields(t *testing.T) {
	payload, err := EncodeCommand(SendMessage{
		Target:  ref.MustParseRoomReference("!abc:example.org"),
		Content: "hi",
	})
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	want := `{"cmd":"send_message","target":"!abc:example.org","content":"hi"}`
	if string(payload) != want {
		t.Errorf("payload = %s, want %s", payload, want)
	}
}

func TestDecodeCommandRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"invalid utf-8", "{\"cmd\":\"send_message\",\"target\":\"!a:b\",\"content\":\"\xff\"}", "UTF-8"},
		{"not json", `hello`, "invalid character"},
		{"not an object", `[1,2]`, "cannot unmarshal"},
		{"missing cmd", `{"target":"!a:b","content":"x"}`, `missing "cmd"`},
		{"unknown cmd", `{"cmd":"kick_user","target":"!a:b"}`, `unknown command "kick_user"`},
		{"unknown field", `{"cmd":"send_message","target":"!a:b","content":"x","urgent":true}`, "unknown field"},
		{"field of other command", `{"cmd":"send_message","target":"!a:b","content":"x","user":"@u:b"}`, "unknown field"},
		{"missing target", `{"cmd":"send_message","content":"x"}`, `missing "target"`},
		{"empty target", `{"cmd":"send_message","target":"","content":"x"}`, `missing "target"`},
		{"missing content", `{"cmd":"send_message","target":"!a:b"}`, `missing "content"`},
		{"bad target", `{"cmd":"send_message","target":"room","content":"x"}`, "room"},
		{"bad reply_to", `{"cmd":"send_message","target":"!a:b","content":"x","reply_to":"abc"}`, "event ID"},
		{"missing user", `{"cmd":"delete_user_messages","target":"!a:b"}`, `missing "user"`},
		{"bad user", `{"cmd":"delete_user_messages","target":"!a:b","user":"spammer"}`, "user ID"},
		{"trailing data", `{"cmd":"send_message","target":"!a:b","content":"x"} {}`, "after"},
		{"wrong type", `{"cmd":"send_message","target":"!a:b","content":7}`, "cannot unmarshal"},
		{"cmd not a string", `{"cmd":7,"target":"!a:b","content":"x"}`, `"cmd"`},
		{"null payload", `null`, "not a JSON object"},
		{"upper case cmd", `{"CMD":"send_message","target":"!abc:example.org","content":"hi"}`, `missing "cmd"`},
		{"mixed case cmd beside cmd", `{"cmd":"send_message","Cmd":"x","target":"!a:b","content":"x"}`, `unknown field "Cmd"`},
		{"mixed case fields", `{"cmd":"send_message","Target":"!abc:example.org","CONTENT":"hi","Want_Event_ID":true}`, `unknown field "CONTENT"`},
		{"mixed case user", `{"cmd":"delete_user_messages","target":"!a:b","USER":"@u:b"}`, `unknown field "USER"`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			command, err := DecodeCommand([]byte(test.payload))
			if err == nil {
				t.Fatalf("DecodeCommand accepted %s as %+v", test.payload, command)
			}
			var protocolErr *ProtocolError
			if !errors.As(err, &protocolErr) {
				t.Fatalf("error %v is not a *ProtocolError", err)
			}
			if string(protocolErr.Raw) != test.payload {
				t.Errorf("Raw = %q, want the payload", protocolErr.Raw)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestEncodeCommandRejectsIncomplete(t *testing.T) {
	if _, err := EncodeCommand(SendMessage{Content: "x"}); err == nil {
		t.Error("EncodeCommand accepted send_message without target")
	}
	if _, err := EncodeCommand(DeleteUserMessages{Target: ref.MustParseRoomReference("!a:b")}); err == nil {
		t.Error("EncodeCommand accepted delete_user_messages without user")
	}
}
