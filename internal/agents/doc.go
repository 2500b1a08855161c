// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agents maintains the catalog of selectable agents.
//
// The catalog is a TOML file of [[agent]] blocks. A Registry loads it
// once and can optionally watch it, picking up edits without a restart
// so operators can roll out new agents underneath a running panel.
package agents
