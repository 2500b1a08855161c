// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/opschat/internal/model"
	"github.com/jeranaias/opschat/internal/protocol"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Sender carries outbound prompts to the agent. Implemented by the
// channel manager, which owns the wire encoding.
type Sender interface {
	SendPrompt(prompt, agent string, ctx []model.Context, tags []string) error
}

// Options configures a chat.
type Options struct {
	// RecommendAfter is the message index above which an auto-selected
	// agent's switch recommendation is surfaced. Zero disables the
	// policy entirely. The default mirrors the service's observed
	// behavior; the product intent behind the exact threshold is an
	// open question, hence a knob rather than a constant.
	RecommendAfter int

	// PhaseDebounce coalesces phase changes before they reach OnPhase.
	// Zero means DefaultPhaseDebounce; negative disables debouncing
	// (synchronous delivery).
	PhaseDebounce time.Duration

	// OnPhase receives debounced phase changes.
	OnPhase func(model.Phase)

	// OnUpdate fires after any message mutation, so the UI can refresh.
	OnUpdate func()

	// ResolveAgent maps an agent name to its configured identity, for
	// display. May be nil.
	ResolveAgent func(name string) (model.Agent, bool)
}

// DefaultRecommendAfter is the observed message-index threshold for
// surfacing agent switch recommendations.
const DefaultRecommendAfter = 10

// =============================================================================
// CHAT
// =============================================================================

// Chat owns one conversation: its message list, assembler, phase and
// confirmation gate. Construct one per chat context and discard it with
// the context; nothing here is shared across chats.
type Chat struct {
	mu sync.Mutex

	id      string
	opts    Options
	sender  Sender
	session *Session

	// Conversation state
	messages []*model.Message
	nextID   int
	metadata *model.ChatMetadata
	preBuf   string // frames received before chat metadata

	// Streaming
	asm           *assembler
	explicitPhase model.Phase
	notifier      *PhaseNotifier

	// Selection
	agentName string
	context   []model.Context

	// welcomePending is set when the welcome prompt was sent; the next
	// streamed message is then the welcome turn.
	welcomePending bool

	// Errors
	chatErr     *model.MessageError
	decodeErrs  int
	recommended string // pending agent switch recommendation
}

// New creates a chat bound to a sender. The session may be shared
// across chats; pass a fresh one when there is only a single chat.
func New(id string, sender Sender, session *Session, opts Options) *Chat {
	if session == nil {
		session = NewSession()
	}
	if opts.RecommendAfter == 0 {
		opts.RecommendAfter = DefaultRecommendAfter
	}

	debounce := DefaultPhaseDebounce
	switch {
	case opts.PhaseDebounce > 0:
		debounce = opts.PhaseDebounce
	case opts.PhaseDebounce < 0:
		debounce = 0
	}

	c := &Chat{
		id:            id,
		opts:          opts,
		sender:        sender,
		session:       session,
		explicitPhase: model.PhaseIdle,
		notifier:      NewPhaseNotifier(debounce, opts.OnPhase),
	}
	c.asm = newAssembler(hooks{
		begin:       c.beginMessage,
		finish:      c.finishMessage,
		confirmed:   c.confirmationAttached,
		fail:        c.protocolError,
		decodeErr:   c.recordDecodeError,
		setPhase:    c.setPhaseLocked,
		welcomeNext: c.welcomeNextLocked,
	})
	return c
}

// ID returns the chat identifier.
func (c *Chat) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata != nil && c.metadata.ChatID != "" {
		return c.metadata.ChatID
	}
	return c.id
}

// Close releases the phase notifier.
func (c *Chat) Close() {
	c.notifier.Stop()
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Messages returns a snapshot of the message list.
func (c *Chat) Messages() []*model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Phase derives the current conversation phase. Pure with respect to
// message state; see derivePhase for the precedence order.
func (c *Chat) Phase() model.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return derivePhase(c.messages, c.explicitPhase)
}

// Err returns the chat-level error, if any.
func (c *Chat) Err() *model.MessageError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatErr
}

// ResetErr clears the chat-level error.
func (c *Chat) ResetErr() {
	c.mu.Lock()
	c.chatErr = nil
	c.mu.Unlock()
	c.updated()
}

// DecodeErrors returns how many structured payloads were dropped because
// they failed to decode.
func (c *Chat) DecodeErrors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decodeErrs
}

// Initialized reports whether chat metadata has been received (or the
// chat was loaded from history).
func (c *Chat) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metadata != nil
}

// AgentName returns the currently selected agent.
func (c *Chat) AgentName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentName
}

// Recommended returns the pending agent switch recommendation, if any.
func (c *Chat) Recommended() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recommended
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectAgent picks the agent for subsequent prompts.
func (c *Chat) SelectAgent(name string) {
	c.mu.Lock()
	c.agentName = name
	c.recommended = ""
	c.mu.Unlock()
	c.updated()
}

// SelectContext replaces the context pairs attached to subsequent prompts.
func (c *Chat) SelectContext(ctx []model.Context) {
	c.mu.Lock()
	c.context = append([]model.Context(nil), ctx...)
	c.mu.Unlock()
}

// DismissRecommendation suppresses agent switch recommendations for the
// rest of the session, across all chats.
func (c *Chat) DismissRecommendation() {
	c.session.Set(sessionDismissRecommended)
	c.mu.Lock()
	c.recommended = ""
	c.mu.Unlock()
	c.updated()
}

// AcceptRecommendation switches to the recommended agent.
func (c *Chat) AcceptRecommendation() {
	c.mu.Lock()
	name := c.recommended
	c.mu.Unlock()
	if name != "" {
		c.SelectAgent(name)
	}
}

// =============================================================================
// SENDING
// =============================================================================

// ErrNoPendingConfirmation is returned when a confirmation response is
// issued for a message without an open gate.
var ErrNoPendingConfirmation = errors.New("no pending confirmation")

// Send delivers a user prompt and appends the optimistic local message.
// Fire-and-forget: no acknowledgement is awaited.
func (c *Chat) Send(prompt string) error {
	c.mu.Lock()
	agent := c.agentName
	ctx := append([]model.Context(nil), c.context...)
	c.mu.Unlock()

	if err := c.sender.SendPrompt(prompt, agent, ctx, nil); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}

	c.mu.Lock()
	msg := model.NewUserMessage(prompt)
	msg.Context = ctx
	if agent != "" {
		msg.AgentMeta = &model.AgentMetadata{Name: agent}
	}
	c.add(msg)
	c.setPhaseLocked(model.PhaseProcessing)
	c.mu.Unlock()

	c.updated()
	return nil
}

// Confirm resolves a pending confirmation gate and reports the outcome to
// the agent. Once the gate leaves pending it can never return;
// re-resolution fails with model.ErrConfirmationResolved.
func (c *Chat) Confirm(messageID int, confirmed bool) error {
	c.mu.Lock()
	msg := c.byID(messageID)
	if msg == nil || msg.Confirmation == nil {
		c.mu.Unlock()
		return ErrNoPendingConfirmation
	}
	if err := msg.Confirmation.Resolve(confirmed); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	answer := model.ConfirmNo
	if confirmed {
		answer = model.ConfirmYes
	}
	if err := c.sender.SendPrompt(answer, "", nil, []string{model.TagConfirmation}); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}

	c.updated()
	return nil
}

// =============================================================================
// CHANNEL CALLBACKS
// =============================================================================

// welcomePrompt is the ephemeral first-turn request for suggestions. It
// is tagged so the service excludes it from persisted history.
const welcomePrompt = "Hi!\n" +
	"- Send me a message with 3 suggestions based on the context, or generic suggestions if no context is attached.\n" +
	"- DO NOT ask for any confirmation or additional information.\n"

// HandleOpen runs when the channel opens. A conversation that already has
// messages skips the welcome turn.
func (c *Chat) HandleOpen() {
	c.mu.Lock()
	empty := len(c.messages) == 0
	ctx := append([]model.Context(nil), c.context...)
	c.setPhaseLocked(model.PhaseProcessing)
	c.mu.Unlock()

	if !empty {
		return
	}

	// Best effort: a failed welcome prompt only costs the suggestions.
	if err := c.sender.SendPrompt(welcomePrompt, "", ctx, []string{model.TagEphemeral, model.TagWelcome}); err == nil {
		c.mu.Lock()
		c.welcomePending = true
		c.mu.Unlock()
	}
}

// HandleFrame applies one inbound raw frame. Must be called in arrival
// order from a single goroutine.
func (c *Chat) HandleFrame(data string) {
	c.mu.Lock()
	if c.metadata == nil {
		c.bootstrapLocked(data)
		c.mu.Unlock()
		c.updated()
		return
	}
	c.asm.Feed(data)
	c.mu.Unlock()
	c.updated()
}

// HandleClose runs when the channel closes. The in-flight message, if
// any, is force-completed so the UI never shows a permanently in-progress
// turn. A deliberate local disconnect is not an error.
func (c *Chat) HandleClose(deliberate bool, err error) {
	c.mu.Lock()
	c.asm.ForceComplete()
	c.setPhaseLocked(model.PhaseIdle)
	if !deliberate {
		me := &model.MessageError{Key: "error.connection.disconnected", Message: "connection to the agent was lost"}
		if err != nil {
			me.Message = me.Message + ": " + err.Error()
		}
		c.chatErr = me
	}
	c.mu.Unlock()
	c.updated()
}

// bootstrapLocked handles frames received before the chat is established.
// The service announces the conversation with a chat-metadata segment; an
// error segment instead means the chat could not be created. Anything
// else is buffered until one of the two arrives.
func (c *Chat) bootstrapLocked(data string) {
	c.preBuf += data

	if payload, rest, ok := protocol.Extract(c.preBuf, protocol.KindError); ok {
		c.preBuf = rest
		c.chatErr = ParseError(payload)
		c.setPhaseLocked(model.PhaseIdle)
		return
	}

	payload, rest, ok := protocol.Extract(c.preBuf, protocol.KindChatMetadata)
	if !ok {
		return
	}
	md, err := ParseChatMetadata(payload)
	if err != nil {
		c.recordDecodeError(err)
		c.preBuf = rest
		return
	}

	c.metadata = md
	c.preBuf = ""
	if rest != "" {
		c.asm.Feed(rest)
	}
}

// =============================================================================
// HISTORY
// =============================================================================

// Load replaces the conversation with replayed history messages. IDs are
// reassigned monotonically; the chat counts as initialized.
func (c *Chat) Load(msgs []*model.Message) {
	c.mu.Lock()
	c.messages = nil
	c.nextID = 0
	for _, m := range msgs {
		c.add(m)
	}
	if c.metadata == nil {
		c.metadata = &model.ChatMetadata{ChatID: c.id}
	}
	c.explicitPhase = model.PhaseIdle
	c.mu.Unlock()
	c.updated()
}

// =============================================================================
// ASSEMBLER HOOKS
// =============================================================================

// add appends a message, assigning the next monotonic ID. Caller holds mu.
func (c *Chat) add(m *model.Message) {
	c.nextID++
	m.ID = c.nextID
	c.messages = append(c.messages, m)
}

// beginMessage registers the next in-flight message. Called by the
// assembler with mu held.
func (c *Chat) beginMessage(welcome bool) *model.Message {
	var m *model.Message
	if welcome {
		c.welcomePending = false
		m = &model.Message{Role: model.RoleSystem, Welcome: true, CreatedAt: time.Now()}
	} else {
		m = model.NewAssistantMessage()
	}
	c.add(m)
	return m
}

// finishMessage runs the agent recommendation policy once a message
// completes. Called by the assembler with mu held.
func (c *Chat) finishMessage(m *model.Message) {
	if c.opts.RecommendAfter <= 0 ||
		c.session.Has(sessionDismissRecommended) ||
		m.AgentMeta == nil ||
		m.AgentMeta.Recommended == "" ||
		m.AgentMeta.Mode != model.SelectionAuto ||
		m.ID <= c.opts.RecommendAfter {
		return
	}

	name := m.AgentMeta.Recommended
	display := name
	if c.opts.ResolveAgent != nil {
		if agent, ok := c.opts.ResolveAgent(name); ok && agent.DisplayName != "" {
			display = agent.DisplayName
		}
	}

	c.recommended = name
	c.add(model.NewSystemMessage(
		fmt.Sprintf("%s may be a better fit for this conversation. Switch agent, or dismiss recommendations for this session.", display)))
}

// confirmationAttached enforces the single-pending invariant: a newly
// requested gate cancels any earlier gate still open. Called with mu held.
func (c *Chat) confirmationAttached(m *model.Message) {
	for _, other := range c.messages {
		if other != m && other.HasPendingConfirmation() {
			other.Confirmation.Status = model.ConfirmationCanceled
		}
	}
}

// protocolError surfaces an error segment: assembly of the current
// message stops and the error renders inline. Called with mu held.
func (c *Chat) protocolError(me *model.MessageError) {
	c.chatErr = me
	c.setPhaseLocked(model.PhaseIdle)
}

// recordDecodeError counts a dropped structured segment.
func (c *Chat) recordDecodeError(err error) {
	c.decodeErrs++
	_ = err // dropped segments are recoverable; the count is the only trace
}

// setPhaseLocked stores the explicit phase and notifies observers with
// the derived value. Caller holds mu.
func (c *Chat) setPhaseLocked(p model.Phase) {
	c.explicitPhase = p
	c.notifier.Notify(derivePhase(c.messages, c.explicitPhase))
}

// welcomeNextLocked reports whether the next streamed message is the
// welcome turn: the welcome prompt went out and nothing answered it yet.
// Caller holds mu.
func (c *Chat) welcomeNextLocked() bool {
	return c.welcomePending
}

// byID finds a message by ID. Caller holds mu.
func (c *Chat) byID(id int) *model.Message {
	for _, m := range c.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// updated fires the UI refresh callback outside the lock.
func (c *Chat) updated() {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate()
	}
}
