// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the tagged wire grammar spoken by the remote
// agent and the parsing primitives shared by live streaming and history
// replay.
//
// The agent emits a flat stream of text frames. Structural frames are
// exact sentinel tokens (<message>, </message>, <think>, </think>);
// everything else is content, possibly carrying tag-delimited segments
// for tool results, confirmations, suggestions, documentation links,
// errors and metadata. Frames are not aligned with tag boundaries: a
// token may be split across frames, so all extraction works against an
// accumulating buffer.
//
// # Key Types
//
//   - Kind: enumerates the segment kinds and their start/end tokens
//   - Extract / ExtractAll: remove complete segments from a buffer
//   - Holdback: split a buffer so partial tokens are never emitted as text
//   - DecodeLoose: JSON decoding tolerant of single-quoted payloads
//
// Structured payloads arrive as single-quoted pseudo-JSON. That is a
// serialization quirk on the agent side, not a format of its own: quotes
// are normalized before decoding and never emitted back.
package protocol
