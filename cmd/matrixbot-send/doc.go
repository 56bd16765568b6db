// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Matrixbot-send sends one command to a running matrixbot over its
// control socket.
//
//	matrixbot-send '#archlinuxcn:example.org' 'build finished'
//	echo '**done**' | matrixbot-send --markdown '!abc:example.org'
//	matrixbot-send --reply-to '$event' --print-event-id '!abc:example.org' 'ack'
//	matrixbot-send --delete-user '@spammer:example.org' '!abc:example.org'
//
// The bot reports nothing back except the event ID requested with
// --print-event-id; failures appear only in the bot's log.
package main
