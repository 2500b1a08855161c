// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles panel events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case Refresh:
		m.refreshTranscript()
		return m, nil

	case PhaseChanged:
		m.phase = msg.Phase
		m.refreshTranscript()
		if m.phase.Busy() {
			return m, m.spin.Tick
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if !m.phase.Busy() {
			return m, nil
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// handleKey routes one key press.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.channel.Disconnect()
		m.chat.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleThinking):
		m.showThinking = !m.showThinking
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.ClearError):
		m.chat.ResetErr()
		return m, nil

	case key.Matches(msg, m.keys.CycleAgent):
		m.cycleAgent()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.vp.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.vp.HalfViewDown()
		return m, nil
	}

	// Bare y/n resolves an open confirmation gate; everything else goes
	// to the input.
	if m.input.Value() == "" {
		if gate := m.pendingGate(); gate != nil {
			switch {
			case key.Matches(msg, m.keys.Confirm):
				_ = m.chat.Confirm(gate.ID, true)
				return m, nil
			case key.Matches(msg, m.keys.Deny):
				_ = m.chat.Confirm(gate.ID, false)
				return m, nil
			}
		}
		// Bare digits pick a suggestion.
		if n, err := strconv.Atoi(msg.String()); err == nil {
			if suggestions := m.lastSuggestions(); n >= 1 && n <= len(suggestions) {
				_ = m.chat.Send(suggestions[n-1])
				return m, nil
			}
		}
	}

	if key.Matches(msg, m.keys.Send) {
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		_ = m.chat.Send(text)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// cycleAgent steps through the catalog, wrapping back to service-picked.
func (m *Model) cycleAgent() {
	list := m.registry.List()
	if len(list) == 0 {
		return
	}
	m.agentIdx++
	if m.agentIdx >= len(list) {
		m.agentIdx = -1
		m.chat.SelectAgent("")
		return
	}
	m.chat.SelectAgent(list[m.agentIdx].Name)
}
