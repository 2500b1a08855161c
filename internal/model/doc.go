// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat conversations:
// messages, confirmation gates, agent attribution and the derived phase.
package model
