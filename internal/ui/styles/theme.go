// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the styled components for the chat panel.
type Theme struct {
	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER AND STATUS STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderAgent lipgloss.Style
	StatusBar   lipgloss.Style
	StatusPhase lipgloss.Style
	Spinner     lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageBody    lipgloss.Style
	Timestamp      lipgloss.Style
	ThinkingText   lipgloss.Style
	ThinkingHint   lipgloss.Style

	// ==========================================================================
	// STRUCTURED EXTRACTION STYLES
	// ==========================================================================

	ActionItem     lipgloss.Style
	SuggestionItem lipgloss.Style
	SuggestionKey  lipgloss.Style
	SourceLink     lipgloss.Style

	// ==========================================================================
	// CONFIRMATION STYLES
	// ==========================================================================

	ConfirmBox      lipgloss.Style
	ConfirmTitle    lipgloss.Style
	ConfirmResolved lipgloss.Style

	// ==========================================================================
	// ERROR AND INPUT STYLES
	// ==========================================================================

	ErrorBox       lipgloss.Style
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	HelpKey        lipgloss.Style
	HelpDesc       lipgloss.Style
}

// New constructs the theme for the given terminal size.
func New(width, height int) *Theme {
	t := &Theme{Width: width, Height: height}

	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Width(width)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderAgent = lipgloss.NewStyle().Foreground(TextSecondary)

	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary).Width(width)
	t.StatusPhase = lipgloss.NewStyle().Foreground(Amber)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(UserFg)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(AssistantFg)
	t.SystemLabel = lipgloss.NewStyle().Bold(true).Foreground(SystemFg)
	t.MessageBody = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.ThinkingText = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.ThinkingHint = lipgloss.NewStyle().Foreground(TextMuted)

	t.ActionItem = lipgloss.NewStyle().Foreground(Emerald)
	t.SuggestionItem = lipgloss.NewStyle().Foreground(TextSecondary)
	t.SuggestionKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.SourceLink = lipgloss.NewStyle().Foreground(LinkColor).Underline(true)

	t.ConfirmBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(0, 1)
	t.ConfirmTitle = lipgloss.NewStyle().Bold(true).Foreground(Amber)
	t.ConfirmResolved = lipgloss.NewStyle().Foreground(TextMuted)

	t.ErrorBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Foreground(Rose).
		Padding(0, 1)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Width(width)
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Cyan)

	t.HelpKey = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)
	t.HelpDesc = lipgloss.NewStyle().Foreground(TextMuted)

	return t
}
