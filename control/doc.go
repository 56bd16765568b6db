// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the bot's local control channel: a Unix
// stream socket over which trusted local processes instruct the bot's
// Matrix session to act in rooms.
//
// # Wire format
//
// Both directions carry frames of a 4-byte big-endian length followed
// by that many bytes of UTF-8 JSON ([WriteFrame], [ReadFrame]). A
// request frame holds one [Command], selected by its "cmd" field:
//
//	{"cmd":"send_message","target":"#room:example.org","content":"hi",
//	 "rich_content":"<b>hi</b>","reply_to":"$e1","replaces":"$e2","want_event_id":true}
//	{"cmd":"delete_user_messages","target":"!abc:example.org","user":"@spammer:example.org"}
//
// Unknown fields and unknown commands are rejected. The only response is
// {"id":"$event"}, written after a successful send_message that set
// want_event_id. Nothing is written on failure: errors are logged by the
// bot and never reported to the client.
//
// # Processing
//
// [Server] accepts connections and handles each on its own goroutine,
// reading frames strictly in order. A frame that does not decode is
// logged and dropped; the connection stays open. The [Dispatcher]
// resolves the command's room through the [Resolver] (an alias costs one
// directory lookup, a room ID none) and then either builds and sends a
// message ([BuildMessage]) or runs one spam-purge sweep ([Purger]).
//
// The package reaches Matrix only through the [Session] and [Room]
// interfaces, so it is tested against in-memory fakes.
package control
