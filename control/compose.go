// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/messaging"
)

// BuildMessage produces the content for a send_message command.
// replyTarget is the event named by ReplyTo when it resolved to an
// original message, nil otherwise.
//
// With Replaces set the result is an edit: the fallback body is
// prefixed with "* ", m.new_content carries the new text, and when a
// reply target is known the fallback also quotes it. Otherwise a reply
// target makes the result a rich reply that mentions the replied-to
// sender and stays in the replied-to message's thread.
func BuildMessage(roomID ref.RoomID, command SendMessage, replyTarget *messaging.Event) messaging.MessageContent {
	content := messaging.NewTextMessage(command.Content)
	if command.RichContent != "" {
		content = messaging.NewHTMLMessage(command.Content, command.RichContent)
	}

	var quoted *replyQuote
	if replyTarget != nil {
		quoted = quoteEvent(roomID, *replyTarget)
	}

	if !command.Replaces.IsZero() {
		newContent := content
		content.Body = "* " + content.Body
		if content.FormattedBody != "" {
			content.FormattedBody = "* " + content.FormattedBody
		}
		if quoted != nil {
			quoted.applyTo(&content)
		}
		content.NewContent = &newContent
		content.RelatesTo = &messaging.RelatesTo{
			RelType: messaging.RelTypeReplace,
			EventID: command.Replaces,
		}
		return content
	}

	if quoted != nil {
		quoted.applyTo(&content)
		relation := &messaging.RelatesTo{
			InReplyTo: &messaging.InReplyTo{EventID: replyTarget.EventID},
		}
		if quoted.threadRoot != nil {
			relation.RelType = messaging.RelTypeThread
			relation.EventID = *quoted.threadRoot
		}
		content.RelatesTo = relation
		content.Mentions = &messaging.Mentions{UserIDs: []ref.UserID{replyTarget.Sender}}
	}
	return content
}

// replyQuote is the reply fallback rendering of a replied-to event.
type replyQuote struct {
	plain      string
	html       string
	threadRoot *ref.EventID
}

// quoteEvent renders the reply fallback for event. The event's own
// fallback, if it was itself a reply, is stripped first so quotes do not
// nest.
func quoteEvent(roomID ref.RoomID, event messaging.Event) *replyQuote {
	content, err := event.MessageContent()
	if err != nil {
		return nil
	}

	sender := event.Sender.String()
	lines := strings.Split(stripPlainFallback(content.Body), "\n")
	var plain strings.Builder
	for index, line := range lines {
		if index == 0 {
			plain.WriteString("> <" + sender + "> " + line)
			continue
		}
		plain.WriteString("\n> " + line)
	}

	originalHTML, ok := content.HTML()
	if ok {
		originalHTML = stripHTMLFallback(originalHTML)
	} else {
		originalHTML = textToHTML(stripPlainFallback(content.Body))
	}

	quote := &replyQuote{
		plain: plain.String(),
		html: `<mx-reply><blockquote>` +
			`<a href="` + html.EscapeString(matrixToEvent(roomID, event.EventID)) + `">In reply to</a> ` +
			`<a href="` + html.EscapeString(matrixToUser(event.Sender)) + `">` + html.EscapeString(sender) + `</a>` +
			`<br />` + originalHTML +
			`</blockquote></mx-reply>`,
	}
	if root, ok := content.ThreadRoot(); ok {
		quote.threadRoot = &root
	}
	return quote
}

// applyTo prepends the fallback to content's plain and HTML bodies,
// creating the HTML body from the plain one if needed.
func (q *replyQuote) applyTo(content *messaging.MessageContent) {
	body, ok := content.HTML()
	if !ok {
		body = textToHTML(content.Body)
	}
	content.Body = q.plain + "\n\n" + content.Body
	content.Format = messaging.FormatHTML
	content.FormattedBody = q.html + body
}

// stripPlainFallback removes a leading block of "> " quote lines and the
// blank line after it.
func stripPlainFallback(body string) string {
	if !strings.HasPrefix(body, "> ") {
		return body
	}
	lines := strings.Split(body, "\n")
	index := 0
	for index < len(lines) && strings.HasPrefix(lines[index], "> ") {
		index++
	}
	if index < len(lines) && lines[index] == "" {
		index++
	}
	return strings.Join(lines[index:], "\n")
}

var mxReplyPattern = regexp.MustCompile(`(?s)^<mx-reply>.*?</mx-reply>`)

func stripHTMLFallback(body string) string {
	return mxReplyPattern.ReplaceAllString(body, "")
}

func textToHTML(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br />")
}

func matrixToEvent(roomID ref.RoomID, eventID ref.EventID) string {
	return "https://matrix.to/#/" + roomID.String() + "/" + eventID.String()
}

func matrixToUser(userID ref.UserID) string {
	return "https://matrix.to/#/" + userID.String()
}

// sendMessage runs a send_message command.
func (d *Dispatcher) sendMessage(ctx context.Context, command SendMessage) (*Response, error) {
	room, err := d.resolver.Room(ctx, command.Target)
	if err != nil {
		return nil, err
	}

	var replyTarget *messaging.Event
	if !command.ReplyTo.IsZero() {
		replyTarget = d.replyTarget(ctx, room, command.ReplyTo)
	}

	content := BuildMessage(room.ID(), command, replyTarget)
	eventID, err := room.Send(ctx, content)
	if err != nil {
		return nil, &RemoteActionError{Action: "send", RoomID: room.ID(), Err: err}
	}

	d.logger.Info("message sent",
		"room_id", room.ID(),
		"event_id", eventID,
		"reply", replyTarget != nil,
		"edit", !command.Replaces.IsZero(),
	)

	if !command.WantEventID {
		return nil, nil
	}
	return &Response{ID: eventID}, nil
}

// replyTarget fetches the replied-to event. Failure to fetch it, or an
// event that is not an original message, yields no reply target rather
// than failing the send.
func (d *Dispatcher) replyTarget(ctx context.Context, room Room, eventID ref.EventID) *messaging.Event {
	event, err := room.Event(ctx, eventID)
	if err != nil {
		d.logger.Warn("reply target unavailable, sending without reply",
			"room_id", room.ID(),
			"event_id", eventID,
			"error", err,
		)
		return nil
	}
	if kind := messaging.ClassifyMessage(event); kind != messaging.OriginalMessage {
		d.logger.Debug("reply target is not an original message, sending without reply",
			"room_id", room.ID(),
			"event_id", eventID,
			"kind", kind,
		)
		return nil
	}
	return &event
}
