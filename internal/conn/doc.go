// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conn manages the streaming channel to the agent service.
//
// A Manager owns at most one open websocket at a time and dispatches
// inbound frames to its callbacks in arrival order from a single reader
// goroutine. It also owns the outbound wire encoding: prompts, agent
// selection, context pairs and tags are serialized here, nowhere else.
//
// A locally requested disconnect closes the channel with a sentinel
// reason so the close callback can distinguish "the user hung up" from
// "the connection dropped".
package conn
