// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatui renders the chat panel.
//
// The panel is a Bubble Tea program fed by the engine through two
// messages: Refresh when the transcript changes and PhaseChanged when
// the status indicator should move. It never touches the wire; all
// protocol work happens in the chat and conn packages.
package chatui
