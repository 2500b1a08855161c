// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jeranaias/opschat/internal/model"
)

// fakeSender records outbound turns.
type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
	err   error
}

type sentCall struct {
	prompt string
	agent  string
	ctx    []model.Context
	tags   []string
}

func (f *fakeSender) SendPrompt(prompt, agent string, ctx []model.Context, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, sentCall{prompt: prompt, agent: agent, ctx: ctx, tags: tags})
	return nil
}

func (f *fakeSender) last() sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// newTestChat builds a chat with synchronous phase delivery.
func newTestChat(t *testing.T, opts Options) (*Chat, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	opts.PhaseDebounce = -1
	c := New("", sender, NewSession(), opts)
	t.Cleanup(c.Close)
	return c, sender
}

// establish feeds the chat-metadata bootstrap frame.
func establish(c *Chat) {
	c.HandleFrame(`<chat-metadata>{"chatId": "c-1"}</chat-metadata>`)
}

func TestChatBootstrap(t *testing.T) {
	c, _ := newTestChat(t, Options{})

	if c.Initialized() {
		t.Fatal("initialized before metadata")
	}

	// Metadata split across frames, followed in-frame by message content.
	c.HandleFrame(`<chat-meta`)
	c.HandleFrame(`data>{'chatId': 'c-42'}</chat-metadata><message>hi</message>`)

	if !c.Initialized() {
		t.Fatal("not initialized after metadata")
	}
	if c.ID() != "c-42" {
		t.Errorf("ID = %q", c.ID())
	}

	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestChatBootstrapError(t *testing.T) {
	c, _ := newTestChat(t, Options{})
	c.HandleFrame(`<error>{"message": "no capacity"}</error>`)

	if err := c.Err(); err == nil || err.Message != "no capacity" {
		t.Fatalf("Err = %+v", err)
	}
	if c.Initialized() {
		t.Error("initialized despite establishment failure")
	}
	if got := c.Phase(); got != model.PhaseIdle {
		t.Errorf("Phase = %v", got)
	}
}

func TestChatWelcomePromptOnOpen(t *testing.T) {
	c, sender := newTestChat(t, Options{})
	c.SelectContext([]model.Context{{Tag: "cluster", Value: "prod-east"}})
	c.HandleOpen()

	if sender.count() != 1 {
		t.Fatalf("sent %d prompts", sender.count())
	}
	call := sender.last()
	if !strings.Contains(call.prompt, "3 suggestions") {
		t.Errorf("prompt = %q", call.prompt)
	}
	wantTags := []string{model.TagEphemeral, model.TagWelcome}
	if len(call.tags) != 2 || call.tags[0] != wantTags[0] || call.tags[1] != wantTags[1] {
		t.Errorf("tags = %v", call.tags)
	}
	if len(call.ctx) != 1 || call.ctx[0].Value != "prod-east" {
		t.Errorf("ctx = %v", call.ctx)
	}
}

func TestChatWelcomeReply(t *testing.T) {
	c, _ := newTestChat(t, Options{})
	establish(c)
	c.HandleOpen()
	c.HandleFrame("<message>Some ideas<suggestion>Check node pressure</suggestion></message>")

	msgs := c.Messages()
	w := msgs[0]
	if !w.Welcome || w.Role != model.RoleSystem {
		t.Fatalf("welcome flags wrong: %+v", w)
	}
	if w.Content != "" {
		t.Errorf("welcome content kept: %q", w.Content)
	}
	if len(w.Suggestions) != 1 || w.Suggestions[0] != "Check node pressure" {
		t.Errorf("Suggestions = %v", w.Suggestions)
	}

	// The turn after the welcome reply streams normally.
	c.HandleFrame("<message>normal reply</message>")
	msgs = c.Messages()
	if msgs[1].Welcome || msgs[1].Content != "normal reply" {
		t.Errorf("second message = %+v", msgs[1])
	}
}

func TestChatNoWelcomeWhenHistoryLoaded(t *testing.T) {
	c, sender := newTestChat(t, Options{})
	c.Load([]*model.Message{model.NewUserMessage("earlier")})
	c.HandleOpen()

	if sender.count() != 0 {
		t.Errorf("welcome prompt sent on resumed chat")
	}
}

func TestChatSend(t *testing.T) {
	c, sender := newTestChat(t, Options{})
	establish(c)
	c.SelectAgent("k8s")

	if err := c.Send("scale up web"); err != nil {
		t.Fatal(err)
	}

	call := sender.last()
	if call.prompt != "scale up web" || call.agent != "k8s" {
		t.Errorf("sent %+v", call)
	}

	msgs := c.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != model.RoleUser || last.Content != "scale up web" {
		t.Errorf("optimistic message = %+v", last)
	}
	if last.AgentMeta == nil || last.AgentMeta.Name != "k8s" {
		t.Errorf("AgentMeta = %+v", last.AgentMeta)
	}
	if got := c.Phase(); got != model.PhaseProcessing {
		t.Errorf("Phase = %v", got)
	}
}

func TestChatSendFailureKeepsTranscript(t *testing.T) {
	c, sender := newTestChat(t, Options{})
	establish(c)
	sender.err = errors.New("socket gone")

	if err := c.Send("hello"); err == nil {
		t.Fatal("want error")
	}
	if len(c.Messages()) != 0 {
		t.Error("optimistic message appended despite send failure")
	}
}

func TestChatConfirmFinality(t *testing.T) {
	c, sender := newTestChat(t, Options{})
	establish(c)
	c.HandleFrame("<message>danger" +
		`<confirmation-response>{"type": "delete"}</confirmation-response></message>`)

	msgs := c.Messages()
	gate := msgs[len(msgs)-1]
	if !gate.HasPendingConfirmation() {
		t.Fatal("no pending confirmation")
	}
	if got := c.Phase(); got != model.PhaseAwaitingConfirmation {
		t.Errorf("Phase = %v", got)
	}

	if err := c.Confirm(gate.ID, true); err != nil {
		t.Fatal(err)
	}
	call := sender.last()
	if call.prompt != model.ConfirmYes {
		t.Errorf("prompt = %q", call.prompt)
	}
	if len(call.tags) != 1 || call.tags[0] != model.TagConfirmation {
		t.Errorf("tags = %v", call.tags)
	}
	if got := c.Phase(); got != model.PhaseConfirming {
		t.Errorf("Phase = %v", got)
	}

	// Once resolved, the gate can never be resolved again.
	if err := c.Confirm(gate.ID, false); !errors.Is(err, model.ErrConfirmationResolved) {
		t.Errorf("second resolve err = %v", err)
	}
	if gate.Confirmation.Status != model.ConfirmationConfirmed {
		t.Errorf("status flipped to %v", gate.Confirmation.Status)
	}

	if err := c.Confirm(9999, true); !errors.Is(err, ErrNoPendingConfirmation) {
		t.Errorf("missing message err = %v", err)
	}
}

func TestChatNewGateCancelsOldGate(t *testing.T) {
	c, _ := newTestChat(t, Options{})
	establish(c)
	c.HandleFrame(`<message>first<confirmation-response>{"type": "a"}</confirmation-response></message>`)
	c.HandleFrame(`<message>second<confirmation-response>{"type": "b"}</confirmation-response></message>`)

	msgs := c.Messages()
	if msgs[0].Confirmation.Status != model.ConfirmationCanceled {
		t.Errorf("first gate = %v, want canceled", msgs[0].Confirmation.Status)
	}
	if msgs[1].Confirmation.Status != model.ConfirmationPending {
		t.Errorf("second gate = %v, want pending", msgs[1].Confirmation.Status)
	}
}

func TestChatHandleClose(t *testing.T) {
	t.Run("unexpected drop", func(t *testing.T) {
		c, _ := newTestChat(t, Options{})
		establish(c)
		c.HandleFrame("<message>cut off mid")

		c.HandleClose(false, errors.New("connection reset"))

		msgs := c.Messages()
		if !msgs[len(msgs)-1].Completed {
			t.Error("in-flight message not force-completed")
		}
		if c.Err() == nil {
			t.Error("no chat error after unexpected close")
		}
		if got := c.Phase(); got != model.PhaseIdle {
			t.Errorf("Phase = %v", got)
		}
	})

	t.Run("deliberate disconnect", func(t *testing.T) {
		c, _ := newTestChat(t, Options{})
		establish(c)
		c.HandleClose(true, nil)
		if c.Err() != nil {
			t.Errorf("deliberate close produced error %v", c.Err())
		}
	})
}

func TestChatRecommendation(t *testing.T) {
	reply := `<message>ok<agent-metadata>{"agent": "general", "mode": "auto", "recommended": "k8s"}</agent-metadata></message>`

	t.Run("below threshold", func(t *testing.T) {
		c, _ := newTestChat(t, Options{RecommendAfter: 5})
		establish(c)
		c.HandleFrame(reply)
		if c.Recommended() != "" {
			t.Error("recommended below threshold")
		}
	})

	t.Run("above threshold", func(t *testing.T) {
		c, _ := newTestChat(t, Options{RecommendAfter: 2})
		establish(c)
		c.HandleFrame("<message>1</message><message>2</message>")
		c.HandleFrame(reply)

		if c.Recommended() != "k8s" {
			t.Fatalf("Recommended = %q", c.Recommended())
		}
		msgs := c.Messages()
		last := msgs[len(msgs)-1]
		if last.Role != model.RoleSystem || !strings.Contains(last.Content, "k8s") {
			t.Errorf("no recommendation notice: %+v", last)
		}

		c.AcceptRecommendation()
		if c.AgentName() != "k8s" {
			t.Errorf("AgentName = %q after accept", c.AgentName())
		}
	})

	t.Run("dismissed for session", func(t *testing.T) {
		session := NewSession()
		sender := &fakeSender{}
		c := New("", sender, session, Options{RecommendAfter: 1, PhaseDebounce: -1})
		defer c.Close()
		establish(c)
		c.DismissRecommendation()

		c.HandleFrame("<message>1</message><message>2</message>")
		c.HandleFrame(reply)
		if c.Recommended() != "" {
			t.Error("recommendation surfaced after dismissal")
		}
	})

	t.Run("manual mode never recommends", func(t *testing.T) {
		c, _ := newTestChat(t, Options{RecommendAfter: 1})
		establish(c)
		c.HandleFrame("<message>1</message><message>2</message>")
		c.HandleFrame(`<message>ok<agent-metadata>{"agent": "general", "mode": "manual", "recommended": "k8s"}</agent-metadata></message>`)
		if c.Recommended() != "" {
			t.Error("recommended despite manual selection mode")
		}
	})
}

func TestChatLoadRenumbers(t *testing.T) {
	c, _ := newTestChat(t, Options{})
	a := model.NewUserMessage("one")
	a.ID = 40
	b := model.NewAssistantMessage()
	b.ID = 7
	b.Completed = true

	c.Load([]*model.Message{a, b})

	msgs := c.Messages()
	if msgs[0].ID != 1 || msgs[1].ID != 2 {
		t.Errorf("IDs = %d, %d", msgs[0].ID, msgs[1].ID)
	}
	if !c.Initialized() {
		t.Error("loaded chat not initialized")
	}
}

func TestChatDecodeErrorsCounted(t *testing.T) {
	c, _ := newTestChat(t, Options{})
	establish(c)
	c.HandleFrame("<message><mcp-response>{nope</mcp-response>ok</message>")

	if c.DecodeErrors() != 1 {
		t.Errorf("DecodeErrors = %d", c.DecodeErrors())
	}
	msgs := c.Messages()
	if msgs[0].Content != "ok" {
		t.Errorf("Content = %q", msgs[0].Content)
	}
}
