// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the opschat configuration.
//
// Configuration is a TOML file with built-in defaults and environment
// variable overrides, resolved in that order:
//
//   - Built-in defaults
//   - ~/.opschat/config.toml
//   - OPSCHAT_* environment variables
//
// Every loaded config is validated before use; validation failures are
// collected and reported together rather than one at a time.
package config
