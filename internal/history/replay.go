// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/opschat/internal/chat"
	"github.com/jeranaias/opschat/internal/model"
	"github.com/jeranaias/opschat/internal/protocol"
)

// =============================================================================
// STORED RECORDS
// =============================================================================

// RecordAgent is the agent attribution stored alongside a turn.
type RecordAgent struct {
	Name string              `json:"name"`
	Mode model.SelectionMode `json:"mode,omitempty"`
}

// Record is one stored turn as the service persists it. Assistant bodies
// still carry the wire tags; Confirmed holds the out-of-band outcome of a
// confirmation gate (nil while unresolved).
type Record struct {
	ChatID    string            `json:"chatId"`
	Role      string            `json:"role"`
	Agent     *RecordAgent      `json:"agent,omitempty"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Confirmed *bool             `json:"confirmation,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// HasTag reports whether the record carries the given tag.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// =============================================================================
// REPLAY
// =============================================================================

// Replay converts stored records into messages, oldest first. Ephemeral
// records are dropped. Decoding is best effort: a record whose structured
// segments fail to parse still yields a message with whatever did decode.
func Replay(recs []Record) []*model.Message {
	out := make([]*model.Message, 0, len(recs))
	for _, rec := range recs {
		if m, ok := MessageFromRecord(rec); ok {
			out = append(out, m)
		}
	}
	return out
}

// MessageFromRecord rebuilds the message a live stream would have produced
// for one stored turn. Returns ok=false for records that never render
// (ephemeral turns).
func MessageFromRecord(rec Record) (*model.Message, bool) {
	if rec.HasTag(model.TagEphemeral) {
		return nil, false
	}

	switch rec.Role {
	case string(model.RoleUser):
		m := model.NewUserMessage(rec.Message)
		m.CreatedAt = rec.CreatedAt
		m.Context = contextPairs(rec.Context)
		if rec.Agent != nil && rec.Agent.Name != "" {
			m.AgentMeta = &model.AgentMetadata{Name: rec.Agent.Name, Mode: rec.Agent.Mode}
		}
		return m, true
	case string(model.RoleSystem):
		m := model.NewSystemMessage(rec.Message)
		m.CreatedAt = rec.CreatedAt
		m.Completed = true
		return m, true
	}

	m := model.NewAssistantMessage()
	m.CreatedAt = rec.CreatedAt
	if rec.HasTag(model.TagWelcome) {
		m.Role = model.RoleSystem
		m.Welcome = true
	}

	body := stripSentinels(rec.Message)
	body = truncateAtTerminal(m, body, rec.Confirmed)

	// Segment order mirrors live classification so a replayed message is
	// field-for-field identical to the streamed one. The welcome turn only
	// understands suggestions and errors; everything else it shows as text
	// that is discarded below.
	if !m.Welcome {
		thoughts, rest := protocol.ExtractAll(body, protocol.KindThinking)
		body = rest
		for _, t := range thoughts {
			m.ThinkingContent = appendVisible(m.ThinkingContent, t)
		}
	}

	suggestions, body := protocol.ExtractAll(body, protocol.KindSuggestion)
	for _, s := range suggestions {
		m.Suggestions = append(m.Suggestions, strings.TrimSpace(s))
	}

	if !m.Welcome {
		results, rest := protocol.ExtractAll(body, protocol.KindToolResult)
		body = rest
		for _, r := range results {
			actions, err := chat.ParseActions(r)
			if err != nil {
				continue
			}
			m.Actions = append(m.Actions, actions...)
		}

		links, rest := protocol.ExtractAll(body, protocol.KindDocLink)
		body = rest
		for _, l := range links {
			if l = strings.TrimSpace(l); l != "" {
				m.SourceLinks = append(m.SourceLinks, l)
			}
		}

		if payload, rest, ok := protocol.Extract(body, protocol.KindAgentMetadata); ok {
			body = rest
			if meta, err := chat.ParseAgentMetadata(payload); err == nil {
				m.AgentMeta = meta
			}
		}
		if m.AgentMeta == nil && rec.Agent != nil && rec.Agent.Name != "" {
			m.AgentMeta = &model.AgentMetadata{Name: rec.Agent.Name, Mode: rec.Agent.Mode}
		}
	}

	if m.Welcome {
		m.Content = ""
	} else {
		m.Content = appendVisible("", body)
		m.TrimTrailingBreaks()
	}
	m.Completed = true
	return m, true
}

// truncateAtTerminal applies the first confirmation or error segment to
// the message and cuts the body at its start token. Those segments are
// terminal on the live stream: the message completes at the gate and
// everything after it is discarded until message end, so replayed text
// after the segment must not render either. A gate payload that fails to
// decode is dropped with the text around it kept, matching the live
// recovery path.
func truncateAtTerminal(m *model.Message, body string, confirmed *bool) string {
	terminal := []string{protocol.KindError.Start()}
	if !m.Welcome {
		terminal = append(terminal, protocol.KindConfirmation.Start())
	}

	for {
		idx, tok := protocol.IndexToken(body, terminal...)
		if idx < 0 {
			return body
		}

		kind := protocol.KindError
		if tok == protocol.KindConfirmation.Start() {
			kind = protocol.KindConfirmation
		}
		payload, rest, ok := protocol.Extract(body[idx:], kind)
		if !ok {
			// Unterminated segment: live buffering never renders it.
			return body[:idx]
		}

		if kind == protocol.KindConfirmation {
			action, err := chat.ParseConfirmation(payload)
			if err != nil {
				body = body[:idx] + rest
				continue
			}
			m.Confirmation = &model.Confirmation{
				Action: action,
				Status: confirmationStatus(confirmed),
			}
		} else {
			m.Err = chat.ParseError(payload)
		}
		return body[:idx]
	}
}

// contextPairs converts the stored context map back into ordered pairs.
// Map order is not stored, so keys sort lexically for a stable transcript.
func contextPairs(ctx map[string]string) []model.Context {
	if len(ctx) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]model.Context, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, model.Context{Tag: k, Value: ctx[k]})
	}
	return pairs
}

// confirmationStatus maps the stored out-of-band outcome to a gate status.
func confirmationStatus(confirmed *bool) model.ConfirmationStatus {
	switch {
	case confirmed == nil:
		return model.ConfirmationPending
	case *confirmed:
		return model.ConfirmationConfirmed
	default:
		return model.ConfirmationCanceled
	}
}

// stripSentinels removes message framing tokens the service may have
// persisted along with the body.
func stripSentinels(body string) string {
	body = strings.ReplaceAll(body, protocol.KindMessage.Start(), "")
	return strings.ReplaceAll(body, protocol.KindMessage.End(), "")
}

// appendVisible accumulates visible text the way the live stream does:
// leading whitespace is suppressed until real content arrives.
func appendVisible(acc, t string) string {
	if acc == "" {
		t = strings.TrimLeft(t, " \t\r\n")
	}
	return acc + t
}
