// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/opschat/internal/model"
)

// View renders the panel.
func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	b.WriteString(m.viewStatus())
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Render(
		m.theme.InputPrompt.Render("> ") + m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.viewHelp())
	return b.String()
}

// viewHeader shows the chat identity and the selected agent.
func (m Model) viewHeader() string {
	title := m.theme.HeaderTitle.Render("opschat")
	agent := "agent: auto"
	if name := m.chat.AgentName(); name != "" {
		agent = "agent: " + m.registry.DisplayName(name)
	}
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(agent) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Render(title + strings.Repeat(" ", gap) + m.theme.HeaderAgent.Render(agent))
}

// viewStatus shows the phase indicator, spinning while busy.
func (m Model) viewStatus() string {
	phase := m.phase
	label := phase.Label()
	if phase.Busy() {
		label = m.theme.Spinner.Render(m.spin.View()) + m.theme.StatusPhase.Render(label)
	} else if label != "" {
		label = m.theme.StatusPhase.Render(label)
	}
	if !m.channel.Connected() {
		label = m.theme.StatusPhase.Render("disconnected")
	}
	return m.theme.StatusBar.Render(label)
}

// viewHelp shows the key bindings relevant right now.
func (m Model) viewHelp() string {
	pairs := []struct{ k, d string }{
		{"enter", "send"},
		{"tab", "agent"},
		{"ctrl+t", "thinking"},
		{"esc", "quit"},
	}
	if m.pendingGate() != nil {
		pairs = append([]struct{ k, d string }{{"y/n", "confirm"}}, pairs...)
	}

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = m.theme.HelpKey.Render(p.k) + " " + m.theme.HelpDesc.Render(p.d)
	}
	return strings.Join(parts, "  ")
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderTranscript renders every message plus the chat-level error.
func (m Model) renderTranscript() string {
	var b strings.Builder
	for _, msg := range m.chat.Messages() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	if err := m.chat.Err(); err != nil {
		b.WriteString(m.theme.ErrorBox.Render(err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMessage renders one message with its structured extractions.
func (m Model) renderMessage(msg *model.Message) string {
	var b strings.Builder

	label := m.roleLabel(msg)
	if m.ui.Timestamps && !msg.CreatedAt.IsZero() {
		label += " " + m.theme.Timestamp.Render(msg.CreatedAt.Format("15:04:05"))
	}
	b.WriteString(label)
	b.WriteString("\n")

	if msg.ThinkingContent != "" {
		if m.showThinking {
			b.WriteString(m.theme.ThinkingText.Render(msg.ThinkingContent))
			b.WriteString("\n")
		} else {
			b.WriteString(m.theme.ThinkingHint.Render("[reasoning hidden, ctrl+t to show]"))
			b.WriteString("\n")
		}
	}
	if msg.Thinking && msg.ThinkingContent == "" {
		b.WriteString(m.theme.ThinkingHint.Render("thinking..."))
		b.WriteString("\n")
	}

	if msg.Content != "" {
		b.WriteString(m.renderBody(msg))
		b.WriteString("\n")
	}

	for _, a := range msg.Actions {
		line := "* " + a.Label
		if a.Description != "" {
			line += " - " + a.Description
		}
		b.WriteString(m.theme.ActionItem.Render(truncate(line, m.width-2)))
		b.WriteString("\n")
	}

	if msg.Confirmation != nil {
		b.WriteString(m.renderConfirmation(msg.Confirmation))
		b.WriteString("\n")
	}

	for i, s := range msg.Suggestions {
		if s == "" {
			continue
		}
		b.WriteString(m.theme.SuggestionKey.Render(fmt.Sprintf("[%d]", i+1)))
		b.WriteString(" ")
		b.WriteString(m.theme.SuggestionItem.Render(truncate(s, m.width-6)))
		b.WriteString("\n")
	}

	for _, link := range msg.SourceLinks {
		b.WriteString("  ")
		b.WriteString(m.theme.SourceLink.Render(truncate(link, m.width-4)))
		b.WriteString("\n")
	}

	if msg.Err != nil {
		b.WriteString(m.theme.ErrorBox.Render(msg.Err.Error()))
		b.WriteString("\n")
	}

	return b.String()
}

// roleLabel renders the message author line.
func (m Model) roleLabel(msg *model.Message) string {
	name := msg.Role.DisplayName()
	if msg.AgentMeta != nil && msg.AgentMeta.Name != "" && msg.Role == model.RoleAssistant {
		name = m.registry.DisplayName(msg.AgentMeta.Name)
	}
	switch msg.Role {
	case model.RoleUser:
		return m.theme.UserLabel.Render(name)
	case model.RoleSystem:
		return m.theme.SystemLabel.Render(name)
	default:
		return m.theme.AssistantLabel.Render(name)
	}
}

// renderBody renders message content, as markdown for assistant turns
// when a renderer is available.
func (m Model) renderBody(msg *model.Message) string {
	if m.renderer != nil && msg.Role == model.RoleAssistant && msg.Completed {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return m.theme.MessageBody.Render(msg.Content)
}

// renderConfirmation renders the gate in its current state.
func (m Model) renderConfirmation(c *model.Confirmation) string {
	title := "Confirmation required"
	if c.Action != nil && c.Action.Type != "" {
		title = "Confirm: " + c.Action.Type
	}

	switch c.Status {
	case model.ConfirmationPending:
		body := m.theme.ConfirmTitle.Render(title) + "\n" +
			"Press y to approve or n to cancel."
		return m.theme.ConfirmBox.Render(body)
	case model.ConfirmationConfirmed:
		return m.theme.ConfirmResolved.Render(title + " (approved)")
	default:
		return m.theme.ConfirmResolved.Render(title + " (canceled)")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// truncate bounds a single line to the given display width.
func truncate(s string, w int) string {
	if w < 4 {
		w = 4
	}
	return runewidth.Truncate(s, w, "...")
}
