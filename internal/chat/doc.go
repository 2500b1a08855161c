// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the per-conversation protocol engine: the
// incremental message assembler, the derived conversation phase and the
// confirmation gate.
//
// Each Chat owns its own assembler instance and message list; nothing is
// shared across chats. Frames must be applied in arrival order — the
// assembler's segment state depends on prior frames, so concurrent or
// out-of-order application is a correctness hazard. The channel manager
// delivers frames from a single goroutine; the Chat's mutex only guards
// against UI reads racing that goroutine.
//
// # Data Flow
//
//	user input → Chat.Send → channel → remote agent
//	inbound frames → Chat.HandleFrame → assembler → message mutations
//	message mutations → derived phase → debounced notifier → UI
package chat
