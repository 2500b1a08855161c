// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"reflect"
	"testing"

	"github.com/jeranaias/opschat/internal/model"
)

// asmHarness collects everything an assembler reports through its hooks.
type asmHarness struct {
	msgs       []*model.Message
	phases     []model.Phase
	failures   []*model.MessageError
	confirmed  []*model.Message
	decodeErrs int
	welcome    bool
}

func newAsmHarness(welcomeFirst bool) (*assembler, *asmHarness) {
	h := &asmHarness{welcome: welcomeFirst}
	a := newAssembler(hooks{
		begin: func(welcome bool) *model.Message {
			m := &model.Message{ID: len(h.msgs) + 1, Role: model.RoleAssistant}
			if welcome {
				m.Role = model.RoleSystem
				m.Welcome = true
			}
			h.msgs = append(h.msgs, m)
			return m
		},
		finish:    func(*model.Message) {},
		confirmed: func(m *model.Message) { h.confirmed = append(h.confirmed, m) },
		fail:      func(me *model.MessageError) { h.failures = append(h.failures, me) },
		decodeErr: func(error) { h.decodeErrs++ },
		setPhase:  func(p model.Phase) { h.phases = append(h.phases, p) },
		welcomeNext: func() bool {
			if !h.welcome {
				return false
			}
			for _, m := range h.msgs {
				if m.Completed {
					return false
				}
			}
			return true
		},
	})
	return a, h
}

func feed(a *assembler, frames ...string) {
	for _, f := range frames {
		a.Feed(f)
	}
}

func TestAssemblerPlainText(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, "<message>Hello ", "world</message>")

	if len(h.msgs) != 1 {
		t.Fatalf("got %d messages", len(h.msgs))
	}
	m := h.msgs[0]
	if m.Content != "Hello world" {
		t.Errorf("Content = %q", m.Content)
	}
	if !m.Completed {
		t.Error("message not completed")
	}
}

func TestAssemblerThinking(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, "<message><think>Let me check the pods</think>The answer is 42</message>")

	m := h.msgs[0]
	if m.ThinkingContent != "Let me check the pods" {
		t.Errorf("ThinkingContent = %q", m.ThinkingContent)
	}
	if m.Content != "The answer is 42" {
		t.Errorf("Content = %q", m.Content)
	}
	if m.Thinking {
		t.Error("Thinking still set after completion")
	}
}

func TestAssemblerThinkingFlagWhileOpen(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, "<message><think>working on it")

	m := h.msgs[0]
	if !m.Thinking {
		t.Error("Thinking not set inside open segment")
	}
	if m.ThinkingContent != "working on it" {
		t.Errorf("ThinkingContent = %q", m.ThinkingContent)
	}
}

func TestAssemblerToolResult(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, "<message>Found it",
		"<mcp-response>{'kind': 'Pod', 'name': 'my-pod', 'namespace': 'kube-system'}</mcp-response>",
		"</message>")

	m := h.msgs[0]
	if len(m.Actions) != 1 {
		t.Fatalf("got %d actions", len(m.Actions))
	}
	a0 := m.Actions[0]
	if a0.Label != "Pod: my-pod" {
		t.Errorf("Label = %q", a0.Label)
	}
	if a0.Resource.Namespace != "kube-system" {
		t.Errorf("Namespace = %q", a0.Resource.Namespace)
	}
	if m.Content != "Found it" {
		t.Errorf("Content = %q", m.Content)
	}
}

func TestAssemblerMalformedPayloadRecovers(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, "<message>ok<mcp-response>{broken json</mcp-response>still here</message>")

	m := h.msgs[0]
	if m.Content != "okstill here" {
		t.Errorf("Content = %q", m.Content)
	}
	if len(m.Actions) != 0 {
		t.Errorf("Actions = %v", m.Actions)
	}
	if h.decodeErrs != 1 {
		t.Errorf("decodeErrs = %d", h.decodeErrs)
	}
	if !m.Completed {
		t.Error("stream did not recover to completion")
	}
}

func TestAssemblerSuggestions(t *testing.T) {
	tests := []struct {
		name string
		wire string
		want []string
	}{
		{"none", "<message>hi</message>", nil},
		{"one", "<message><suggestion> Scale up </suggestion></message>", []string{"Scale up"}},
		{
			"three",
			"<message><suggestion>a</suggestion><suggestion>b</suggestion><suggestion>c</suggestion></message>",
			[]string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, h := newAsmHarness(false)
			feed(a, tt.wire)
			if got := h.msgs[0].Suggestions; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Suggestions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssemblerConfirmationEndsMessage(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, "<message>About to delete",
		"<confirmation-response>{'type': 'delete', 'payload': {}}</confirmation-response>",
		"this text never renders</message>",
		"<message>next</message>")

	if len(h.msgs) != 2 {
		t.Fatalf("got %d messages", len(h.msgs))
	}

	first := h.msgs[0]
	if first.Confirmation == nil || first.Confirmation.Status != model.ConfirmationPending {
		t.Fatal("confirmation not pending")
	}
	if !first.Completed {
		t.Error("confirmation did not complete the message")
	}
	if first.Content != "About to delete" {
		t.Errorf("Content = %q, trailing text leaked", first.Content)
	}
	if len(h.confirmed) != 1 {
		t.Errorf("confirmed hook fired %d times", len(h.confirmed))
	}

	if h.msgs[1].Content != "next" {
		t.Errorf("second message Content = %q", h.msgs[1].Content)
	}
}

func TestAssemblerErrorSegment(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, `<message>partial<error>{"key": "error.llm", "message": "model overloaded"}</error></message>`)

	m := h.msgs[0]
	if m.Err == nil || m.Err.Message != "model overloaded" {
		t.Fatalf("Err = %+v", m.Err)
	}
	if !m.Completed {
		t.Error("error did not complete the message")
	}
	if len(h.failures) != 1 {
		t.Errorf("fail hook fired %d times", len(h.failures))
	}
}

func TestAssemblerAgentMetadata(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, `<message>done<agent-metadata>{"agent": "k8s", "mode": "auto", "recommended": "logs"}</agent-metadata></message>`)

	md := h.msgs[0].AgentMeta
	if md == nil || md.Name != "k8s" || md.Mode != model.SelectionAuto || md.Recommended != "logs" {
		t.Errorf("AgentMeta = %+v", md)
	}
}

func TestAssemblerWhitespaceHandling(t *testing.T) {
	tests := []struct {
		name   string
		frames []string
		want   string
	}{
		{"leading blank chunks suppressed", []string{"<message>", " \n", "hello</message>"}, "hello"},
		{"trailing break run trimmed", []string{"<message>hi\r\n\n\n</message>"}, "hi"},
		{"interior breaks kept", []string{"<message>a\n\nb</message>"}, "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, h := newAsmHarness(false)
			feed(a, tt.frames...)
			if got := h.msgs[0].Content; got != tt.want {
				t.Errorf("Content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssemblerWelcomeTurn(t *testing.T) {
	a, h := newAsmHarness(true)
	feed(a, "<message>Here are some ideas<suggestion>Check pod health</suggestion>",
		"<think>ignored as text</think></message>",
		"<message>regular reply</message>")

	welcome := h.msgs[0]
	if !welcome.Welcome || welcome.Role != model.RoleSystem {
		t.Fatalf("welcome flags wrong: %+v", welcome)
	}
	if welcome.Content != "" {
		t.Errorf("welcome content kept: %q", welcome.Content)
	}
	if got := welcome.Suggestions; !reflect.DeepEqual(got, []string{"Check pod health"}) {
		t.Errorf("Suggestions = %v", got)
	}
	if welcome.ThinkingContent != "" {
		t.Errorf("welcome decoded a thinking segment: %q", welcome.ThinkingContent)
	}

	second := h.msgs[1]
	if second.Welcome || second.Role != model.RoleAssistant {
		t.Errorf("second message flags wrong: %+v", second)
	}
	if second.Content != "regular reply" {
		t.Errorf("second Content = %q", second.Content)
	}
}

func TestAssemblerNoiseBetweenMessagesDiscarded(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, "junk before<message>real</message>junk after")

	if len(h.msgs) != 1 {
		t.Fatalf("got %d messages", len(h.msgs))
	}
	if h.msgs[0].Content != "real" {
		t.Errorf("Content = %q", h.msgs[0].Content)
	}
}

func TestAssemblerForceComplete(t *testing.T) {
	a, h := newAsmHarness(false)
	feed(a, "<message><think>interrupted")

	a.ForceComplete()

	m := h.msgs[0]
	if !m.Completed {
		t.Error("message not completed")
	}
	if m.Thinking {
		t.Error("Thinking still set")
	}
	if a.Current() != nil {
		t.Error("assembler still holds a current message")
	}
}

// TestAssemblerChunkInvariance verifies that every way of splitting the
// same wire text produces an identical message sequence.
func TestAssemblerChunkInvariance(t *testing.T) {
	wire := "<message><think>inspect deploy</think>Scaled it\n" +
		"<mcp-response>{'kind': 'Deployment', 'name': 'web'}</mcp-response>" +
		"<suggestion>View logs</suggestion>" +
		"<mcp-doclink>https://docs.example.com/scale</mcp-doclink>" +
		"\n</message>"

	var want []*model.Message
	{
		a, h := newAsmHarness(false)
		feed(a, wire)
		want = h.msgs
	}

	for cut := 1; cut < len(wire); cut++ {
		a, h := newAsmHarness(false)
		feed(a, wire[:cut], wire[cut:])
		if !reflect.DeepEqual(h.msgs, want) {
			t.Fatalf("split at %d diverged:\n got %+v\nwant %+v", cut, h.msgs[0], want[0])
		}
	}

	// Byte-at-a-time delivery converges too.
	a, h := newAsmHarness(false)
	for i := 0; i < len(wire); i++ {
		a.Feed(wire[i : i+1])
	}
	if !reflect.DeepEqual(h.msgs, want) {
		t.Fatalf("byte-wise delivery diverged")
	}
}
