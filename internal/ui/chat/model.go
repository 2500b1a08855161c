// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/opschat/internal/agents"
	"github.com/jeranaias/opschat/internal/chat"
	"github.com/jeranaias/opschat/internal/config"
	"github.com/jeranaias/opschat/internal/conn"
	"github.com/jeranaias/opschat/internal/model"
	"github.com/jeranaias/opschat/internal/ui/styles"
)

// =============================================================================
// ENGINE MESSAGES
// =============================================================================

// Refresh tells the panel the transcript changed. Sent by the engine via
// Program.Send from any goroutine.
type Refresh struct{}

// PhaseChanged carries a debounced status change.
type PhaseChanged struct {
	Phase model.Phase
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat panel.
type Model struct {
	chat     *chat.Chat
	channel  *conn.Manager
	registry *agents.Registry
	ui       config.UIConfig

	theme    *styles.Theme
	keys     KeyMap
	vp       viewport.Model
	input    textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	phase        model.Phase
	width        int
	height       int
	ready        bool
	showThinking bool
	agentIdx     int
}

// New creates the panel.
func New(c *chat.Chat, channel *conn.Manager, registry *agents.Registry, ui config.UIConfig) Model {
	input := textinput.New()
	input.Placeholder = "Ask about your cluster..."
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		chat:         c,
		channel:      channel,
		registry:     registry,
		ui:           ui,
		keys:         DefaultKeyMap(),
		input:        input,
		spin:         spin,
		phase:        model.PhaseIdle,
		showThinking: ui.ShowThinking,
		agentIdx:     -1,
	}
}

// Init starts the cursor blink and spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

// resize lays the panel out for a new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme = styles.New(width, height)

	// Header, status, input and help each take one line plus the input
	// border; the viewport gets the rest.
	vpHeight := height - 6
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.vp = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = width
		m.vp.Height = vpHeight
	}
	m.input.Width = width - 4

	m.renderer = nil
	if m.ui.Markdown {
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-2),
		); err == nil {
			m.renderer = r
		}
	}

	m.refreshTranscript()
}

// refreshTranscript re-renders the message list into the viewport.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	atBottom := m.vp.AtBottom()
	m.vp.SetContent(m.renderTranscript())
	if atBottom {
		m.vp.GotoBottom()
	}
}

// pendingGate returns the message holding an unresolved confirmation.
func (m *Model) pendingGate() *model.Message {
	for _, msg := range m.chat.Messages() {
		if msg.HasPendingConfirmation() {
			return msg
		}
	}
	return nil
}

// lastSuggestions returns the most recent completed message's suggestions.
func (m *Model) lastSuggestions() []string {
	msgs := m.chat.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Completed && len(msgs[i].Suggestions) > 0 {
			return msgs[i].Suggestions
		}
	}
	return nil
}
