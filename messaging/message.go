// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/archlinuxcn/matrixbot/lib/ref"
)

// Message content constants.
const (
	MsgTypeText   = "m.text"
	MsgTypeNotice = "m.notice"

	FormatHTML = "org.matrix.custom.html"

	RelTypeReplace = "m.replace"
	RelTypeThread  = "m.thread"
)

// MessageContent is the content body of an m.room.message event.
//
// An edit carries RelatesTo{RelType: m.replace} and the replacement in
// NewContent; Body and FormattedBody then hold the fallback shown by
// clients that do not understand edits.
type MessageContent struct {
	MsgType       string          `json:"msgtype"`
	Body          string          `json:"body"`
	Format        string          `json:"format,omitempty"`
	FormattedBody string          `json:"formatted_body,omitempty"`
	Mentions      *Mentions       `json:"m.mentions,omitempty"`
	RelatesTo     *RelatesTo      `json:"m.relates_to,omitempty"`
	NewContent    *MessageContent `json:"m.new_content,omitempty"`
}

// Mentions identifies users referenced in a message.
type Mentions struct {
	UserIDs []ref.UserID `json:"user_ids,omitempty"`
	Room    bool         `json:"room,omitempty"`
}

// RelatesTo expresses the relationship of a message to another event.
// For replies only InReplyTo is set. For edits RelType is m.replace and
// EventID the edited event. For thread messages RelType is m.thread and
// EventID the thread root.
type RelatesTo struct {
	RelType       string      `json:"rel_type,omitempty"`
	EventID       ref.EventID `json:"event_id,omitzero"`
	IsFallingBack bool        `json:"is_falling_back,omitempty"`
	InReplyTo     *InReplyTo  `json:"m.in_reply_to,omitempty"`
}

// InReplyTo references the event being replied to.
type InReplyTo struct {
	EventID ref.EventID `json:"event_id"`
}

// NewTextMessage creates a plain text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: MsgTypeText,
		Body:    body,
	}
}

// NewHTMLMessage creates a message with a plain body and an HTML
// formatted body.
func NewHTMLMessage(body, html string) MessageContent {
	return MessageContent{
		MsgType:       MsgTypeText,
		Body:          body,
		Format:        FormatHTML,
		FormattedBody: html,
	}
}

// HTML returns the formatted body when the content is HTML-formatted.
func (m MessageContent) HTML() (string, bool) {
	if m.Format != FormatHTML || m.FormattedBody == "" {
		return "", false
	}
	return m.FormattedBody, true
}

// ThreadRoot returns the thread root when the message belongs to a
// thread.
func (m MessageContent) ThreadRoot() (ref.EventID, bool) {
	if m.RelatesTo == nil || m.RelatesTo.RelType != RelTypeThread || m.RelatesTo.EventID.IsZero() {
		return ref.EventID{}, false
	}
	return m.RelatesTo.EventID, true
}

// MessageKind classifies a timeline event for the purposes of replying
// and purging.
type MessageKind int

const (
	// NotMessage is any event that is not a decodable m.room.message.
	NotMessage MessageKind = iota
	// OriginalMessage is a message that is neither an edit nor redacted.
	OriginalMessage
	// EditMessage replaces an earlier message (rel_type m.replace).
	EditMessage
	// RedactedMessage has had its content removed by a redaction.
	RedactedMessage
)

func (k MessageKind) String() string {
	switch k {
	case NotMessage:
		return "not-message"
	case OriginalMessage:
		return "original"
	case EditMessage:
		return "edit"
	case RedactedMessage:
		return "redacted"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

// ClassifyMessage decides what kind of message event is. A redacted
// event keeps its type but loses its content, so redaction is checked
// before content decoding.
func ClassifyMessage(event Event) MessageKind {
	if event.Type != EventTypeRoomMessage {
		return NotMessage
	}
	if event.IsRedacted() {
		return RedactedMessage
	}
	content, err := event.MessageContent()
	if err != nil {
		return NotMessage
	}
	if content.RelatesTo != nil && content.RelatesTo.RelType == RelTypeReplace {
		return EditMessage
	}
	return OriginalMessage
}

// IsRedacted reports whether the server has redacted the event.
func (e Event) IsRedacted() bool {
	return e.Unsigned != nil && e.Unsigned.RedactedBecause != nil
}

// MessageContent decodes the event content as m.room.message content.
// It fails when msgtype or body is missing or of the wrong type.
func (e Event) MessageContent() (MessageContent, error) {
	var content MessageContent
	if err := e.DecodeContent(&content); err != nil {
		return MessageContent{}, err
	}
	if _, ok := e.Content["msgtype"].(string); !ok {
		return MessageContent{}, fmt.Errorf("messaging: event %s has no msgtype", e.EventID)
	}
	if _, ok := e.Content["body"].(string); !ok {
		return MessageContent{}, fmt.Errorf("messaging: event %s has no body", e.EventID)
	}
	return content, nil
}

// DecodeContent re-decodes the generic content map into target.
func (e Event) DecodeContent(target any) error {
	encoded, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("messaging: encoding content of %s: %w", e.EventID, err)
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return fmt.Errorf("messaging: decoding content of %s: %w", e.EventID, err)
	}
	return nil
}
