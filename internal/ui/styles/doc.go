// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the opschat panel.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

Accent colors:

  - Purple - spinner and working indicators
  - Cyan - brand color, input prompt, suggestion keys
  - Emerald - tool-result action lines
  - Amber - phase indicator and confirmation gates
  - Rose - errors

Role colors (UserFg, AssistantFg, SystemFg) key the transcript labels;
TextPrimary/TextSecondary/TextMuted form the text hierarchy.

# Theme System (theme.go)

Theme bundles one lipgloss.Style per panel element, laid out for a given
terminal size:

	theme := styles.New(width, height)
	header := theme.Header.Render(...)

The theme is rebuilt on every terminal resize because bordered styles
carry the width.
*/
package styles
