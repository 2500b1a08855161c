// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history loads persisted conversations from the agent service.
//
// The service stores each turn as a raw record whose message body still
// carries the wire tags. Replay decodes a record into the same Message a
// live stream would have produced, so a reopened conversation renders
// identically to the one the user watched arrive.
package history
