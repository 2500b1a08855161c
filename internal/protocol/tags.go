// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

// =============================================================================
// SEGMENT KINDS
// =============================================================================

// Kind identifies a tag-delimited segment kind in the wire grammar.
type Kind int

const (
	KindChatMetadata Kind = iota
	KindAgentMetadata
	KindMessage
	KindThinking
	KindToolResult
	KindConfirmation
	KindSuggestion
	KindDocLink
	KindError

	kindCount // sentinel, keep last
)

// tagPair holds the start and end token for a kind.
type tagPair struct {
	start string
	end   string
}

var tags = [kindCount]tagPair{
	KindChatMetadata:  {"<chat-metadata>", "</chat-metadata>"},
	KindAgentMetadata: {"<agent-metadata>", "</agent-metadata>"},
	KindMessage:       {"<message>", "</message>"},
	KindThinking:      {"<think>", "</think>"},
	KindToolResult:    {"<mcp-response>", "</mcp-response>"},
	KindConfirmation:  {"<confirmation-response>", "</confirmation-response>"},
	KindSuggestion:    {"<suggestion>", "</suggestion>"},
	KindDocLink:       {"<mcp-doclink>", "</mcp-doclink>"},
	KindError:         {"<error>", "</error>"},
}

// Start returns the opening token for the kind.
func (k Kind) Start() string {
	return tags[k].start
}

// End returns the closing token for the kind.
func (k Kind) End() string {
	return tags[k].end
}

// String returns a short name for the kind, for error messages.
func (k Kind) String() string {
	switch k {
	case KindChatMetadata:
		return "chat-metadata"
	case KindAgentMetadata:
		return "agent-metadata"
	case KindMessage:
		return "message"
	case KindThinking:
		return "thinking"
	case KindToolResult:
		return "tool-result"
	case KindConfirmation:
		return "confirmation"
	case KindSuggestion:
		return "suggestion"
	case KindDocLink:
		return "doc-link"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Kinds returns every segment kind, in grammar order.
func Kinds() []Kind {
	ks := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		ks = append(ks, k)
	}
	return ks
}

// allTokens lists every start and end token. Used for holdback splitting
// so a partially received token is never flushed as visible text.
var allTokens = func() []string {
	var ts []string
	for _, p := range tags {
		ts = append(ts, p.start, p.end)
	}
	return ts
}()
