// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// RESERVED PROMPT TAGS
// =============================================================================

// Reserved outbound tags understood by the agent service.
const (
	// TagEphemeral excludes the prompt from persisted history.
	TagEphemeral = "ephemeral"
	// TagWelcome marks the first-turn suggestion request.
	TagWelcome = "welcome"
	// TagConfirmation marks a reply to a pending confirmation gate.
	TagConfirmation = "confirmation"
)

// Reserved prompt values answering a confirmation gate.
const (
	ConfirmYes = "yes"
	ConfirmNo  = "no"
)

// =============================================================================
// ACTIONS
// =============================================================================

// ActionType classifies how an action is rendered.
type ActionType string

const (
	ActionLink   ActionType = "link"
	ActionButton ActionType = "button"
)

// Resource identifies the dashboard resource an action points at.
type Resource struct {
	Kind      string `json:"kind,omitempty"`
	Type      string `json:"type,omitempty"`
	Name      string `json:"name,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Cluster   string `json:"cluster,omitempty"`
}

// Action is a tool/resource reference extracted from an agent reply.
type Action struct {
	Type        ActionType `json:"type"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Resource    Resource   `json:"resource"`
}

// =============================================================================
// CONFIRMATION GATE
// =============================================================================

// ConfirmationStatus tracks a human-in-the-loop gate. Transitions are
// one-way: pending may move to confirmed or canceled, never back.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationCanceled  ConfirmationStatus = "canceled"
)

// Operation is one JSON-patch style step of a proposed mutation.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// ConfirmationAction describes the mutation the agent proposes to run.
type ConfirmationAction struct {
	Type     string      `json:"type"` // patch, create, update, delete
	Payload  []Operation `json:"payload,omitempty"`
	Resource Resource    `json:"resource"`
}

// Confirmation attaches a pending gate to a message.
type Confirmation struct {
	Action *ConfirmationAction `json:"action"`
	Status ConfirmationStatus  `json:"status"`
}

// ErrConfirmationResolved is returned when a gate that already left
// pending is resolved again.
var ErrConfirmationResolved = errors.New("confirmation already resolved")

// Resolve moves the gate out of pending. Resolving twice is an error and
// the stored status is left untouched.
func (c *Confirmation) Resolve(confirmed bool) error {
	if c.Status != ConfirmationPending {
		return ErrConfirmationResolved
	}
	if confirmed {
		c.Status = ConfirmationConfirmed
	} else {
		c.Status = ConfirmationCanceled
	}
	return nil
}

// =============================================================================
// AGENT ATTRIBUTION
// =============================================================================

// SelectionMode records how an agent was chosen for a turn.
type SelectionMode string

const (
	SelectionAuto   SelectionMode = "auto"
	SelectionManual SelectionMode = "manual"
)

// Agent is a named, externally configured responder identity.
type Agent struct {
	Name        string `toml:"name" json:"name"`
	DisplayName string `toml:"display_name" json:"displayName"`
	Description string `toml:"description" json:"description,omitempty"`
}

// AgentMetadata attributes a message to an agent. Recommended carries the
// name of an alternate agent the service suggests switching to.
type AgentMetadata struct {
	Name        string        `json:"agent"`
	Mode        SelectionMode `json:"mode,omitempty"`
	Recommended string        `json:"recommended,omitempty"`
}

// =============================================================================
// CONTEXT
// =============================================================================

// Context is one (tag, value) pair attached to an outbound prompt, e.g.
// the active cluster or namespace.
type Context struct {
	Tag         string `json:"tag"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// MessageError is a message-level error surfaced inline in the transcript.
type MessageError struct {
	Key     string `json:"key,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *MessageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

// =============================================================================
// CHAT METADATA
// =============================================================================

// ChatMetadata is sent by the agent when a conversation is established.
type ChatMetadata struct {
	ChatID string `json:"chatId"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is the unit of conversation. A message is created when a
// message-start sentinel is observed (live) or a stored record is read
// (replay), mutated field by field as segments are classified, and becomes
// immutable once Completed is set.
type Message struct {
	// Identity
	ID        int       `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`

	// Content
	Content         string `json:"content"`
	ThinkingContent string `json:"thinkingContent,omitempty"`

	// Streaming state
	Thinking  bool `json:"-"`
	Completed bool `json:"completed"`

	// Welcome marks the ephemeral first-turn suggestion message; its
	// visible content is discarded at message end.
	Welcome bool `json:"-"`

	// Structured extractions
	Actions      []Action       `json:"actions,omitempty"`
	Suggestions  []string       `json:"suggestions,omitempty"`
	SourceLinks  []string       `json:"sourceLinks,omitempty"`
	Confirmation *Confirmation  `json:"confirmation,omitempty"`
	AgentMeta    *AgentMetadata `json:"agentMetadata,omitempty"`
	Context      []Context      `json:"context,omitempty"`

	// Err records a protocol error that aborted assembly of this message.
	Err *MessageError `json:"error,omitempty"`
}

// NewUserMessage creates a completed user message.
func NewUserMessage(content string) *Message {
	return &Message{
		Role:      RoleUser,
		Content:   content,
		Completed: true,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an in-flight assistant message.
func NewAssistantMessage() *Message {
	return &Message{
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
	}
}

// NewSystemMessage creates a completed system message.
func NewSystemMessage(content string) *Message {
	return &Message{
		Role:      RoleSystem,
		Content:   content,
		Completed: true,
		CreatedAt: time.Now(),
	}
}

// HasPendingConfirmation reports whether this message carries an
// unresolved gate.
func (m *Message) HasPendingConfirmation() bool {
	return m.Confirmation != nil && m.Confirmation.Status == ConfirmationPending
}

// TrimTrailingBreaks removes the trailing run of line breaks from the
// visible content. Applied exactly once, at message end.
func (m *Message) TrimTrailingBreaks() {
	m.Content = strings.TrimRight(m.Content, "\r\n")
}

// Preview returns a truncated single-line preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
