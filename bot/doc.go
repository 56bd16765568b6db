// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot holds the bot's Matrix session: the stored login, the set
// of joined rooms, and the /sync loop that keeps both current.
//
// [Bot] implements control.Session, so the control channel acts through
// it on rooms the bot has joined. Room membership is learned from
// /joined_rooms at startup and then from the join and leave sections of
// every /sync response. Invites are not accepted automatically.
package bot
