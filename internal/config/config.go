// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete opschat configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Agents AgentsConfig `toml:"agents"`
	Chat   ChatConfig   `toml:"chat"`
	UI     UIConfig     `toml:"ui"`
}

// ServerConfig locates the agent service.
type ServerConfig struct {
	// SocketURL is the streaming endpoint (ws:// or wss://).
	SocketURL string `toml:"socket_url"`
	// HistoryURL is the REST endpoint for saved conversations.
	HistoryURL string `toml:"history_url"`
}

// AgentsConfig controls agent selection.
type AgentsConfig struct {
	// CatalogPath is the TOML file listing selectable agents.
	// Empty means ~/.opschat/agents.toml.
	CatalogPath string `toml:"catalog_path"`
	// DefaultAgent is selected when a chat opens. Empty lets the
	// service pick.
	DefaultAgent string `toml:"default_agent"`
	// RecommendAfter is the message index above which agent switch
	// recommendations are surfaced. 0 uses the built-in default;
	// negative disables them.
	RecommendAfter int `toml:"recommend_after"`
	// Watch reloads the catalog when the file changes.
	Watch bool `toml:"watch"`
}

// ChatConfig tunes conversation behavior.
type ChatConfig struct {
	// PhaseDebounceMS coalesces status indicator changes. 0 uses the
	// built-in default; negative disables debouncing.
	PhaseDebounceMS int `toml:"phase_debounce_ms"`
	// ConnectTimeoutSecs bounds the initial dial.
	ConnectTimeoutSecs int `toml:"connect_timeout_secs"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the color theme name: "dark", "light".
	Theme string `toml:"theme"`
	// Markdown renders assistant messages as markdown.
	Markdown bool `toml:"markdown"`
	// ShowThinking expands reasoning sections by default.
	ShowThinking bool `toml:"show_thinking"`
	// Timestamps shows a timestamp on each message.
	Timestamps bool `toml:"timestamps"`
}

// PhaseDebounce converts the configured debounce to a duration, keeping
// the sign convention (0 default, negative disabled).
func (c ChatConfig) PhaseDebounce() time.Duration {
	return time.Duration(c.PhaseDebounceMS) * time.Millisecond
}

// ConnectTimeout returns the dial timeout.
func (c ChatConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			SocketURL:  "ws://localhost:8080/v1/chat",
			HistoryURL: "http://localhost:8080/v1",
		},
		Agents: AgentsConfig{
			Watch: true,
		},
		Chat: ChatConfig{
			ConnectTimeoutSecs: 10,
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the opschat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".opschat"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CatalogPath resolves the agent catalog location, applying the default
// when the config leaves it empty.
func (c *Config) CatalogPath() (string, error) {
	if c.Agents.CatalogPath != "" {
		return c.Agents.CatalogPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agents.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file, falling back to defaults when it does not
// exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the default config file, creating the
// directory when needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies OPSCHAT_* environment variables on top of the
// loaded config.
//
// Supported variables:
//
//	OPSCHAT_SOCKET_URL       streaming endpoint
//	OPSCHAT_HISTORY_URL      conversation store endpoint
//	OPSCHAT_AGENT            default agent name
//	OPSCHAT_AGENT_CATALOG    agent catalog file
//	OPSCHAT_RECOMMEND_AFTER  recommendation threshold
//	OPSCHAT_THEME            UI theme
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OPSCHAT_SOCKET_URL"); v != "" {
		c.Server.SocketURL = v
	}
	if v := os.Getenv("OPSCHAT_HISTORY_URL"); v != "" {
		c.Server.HistoryURL = v
	}
	if v := os.Getenv("OPSCHAT_AGENT"); v != "" {
		c.Agents.DefaultAgent = v
	}
	if v := os.Getenv("OPSCHAT_AGENT_CATALOG"); v != "" {
		c.Agents.CatalogPath = v
	}
	if v := os.Getenv("OPSCHAT_RECOMMEND_AFTER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Agents.RecommendAfter = n
		}
	}
	if v := os.Getenv("OPSCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns any errors, all at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.SocketURL == "" {
		errs = append(errs, ValidationError{"server.socket_url", "must be set"})
	} else if u, err := url.Parse(c.Server.SocketURL); err != nil {
		errs = append(errs, ValidationError{"server.socket_url", err.Error()})
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, ValidationError{"server.socket_url", "scheme must be ws or wss"})
	}

	if c.Server.HistoryURL != "" {
		if u, err := url.Parse(c.Server.HistoryURL); err != nil {
			errs = append(errs, ValidationError{"server.history_url", err.Error()})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{"server.history_url", "scheme must be http or https"})
		}
	}

	if c.Chat.ConnectTimeoutSecs < 0 {
		errs = append(errs, ValidationError{"chat.connect_timeout_secs", "must not be negative"})
	}

	switch c.UI.Theme {
	case "", "dark", "light":
	default:
		errs = append(errs, ValidationError{"ui.theme", fmt.Sprintf("unknown theme %q", c.UI.Theme)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
