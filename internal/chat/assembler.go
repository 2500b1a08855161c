// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/jeranaias/opschat/internal/model"
	"github.com/jeranaias/opschat/internal/protocol"
)

// =============================================================================
// ASSEMBLER STATE
// =============================================================================

// asmState is the assembler's position inside the wire grammar.
type asmState int

const (
	// asmIdle: between messages, waiting for a message-start token.
	asmIdle asmState = iota
	// asmText: inside a message, accumulating visible content.
	asmText
	// asmThinking: inside a thinking segment.
	asmThinking
	// asmDrained: message already terminal (confirmation or error),
	// discarding content until the message-end token.
	asmDrained
)

// hooks are the assembler's callbacks into its owning chat. The assembler
// never touches the message list or phase store directly.
type hooks struct {
	// begin creates and registers a new in-flight message.
	begin func(welcome bool) *model.Message
	// finish runs end-of-message bookkeeping (recommendation policy).
	finish func(*model.Message)
	// confirmed reports a newly attached pending confirmation.
	confirmed func(*model.Message)
	// fail surfaces a protocol error carried by an error segment.
	fail func(*model.MessageError)
	// decodeErr records a recoverable payload decode failure.
	decodeErr func(error)
	// setPhase stores the explicit streaming phase.
	setPhase func(model.Phase)
	// welcomeNext reports whether the next message is the welcome turn.
	welcomeNext func() bool
}

// assembler incrementally folds raw text frames into the current message.
// One instance per chat; it holds the only cursor into the wire stream, so
// frames must be fed in arrival order.
//
// Frames are not aligned with token boundaries. Everything goes through a
// cursor buffer: complete tokens and segments are consumed from the front,
// and a suffix that might be a partial token is held back rather than
// flushed as text, so any chunking of the same wire text converges to the
// same message.
type assembler struct {
	state asmState
	buf   string
	cur   *model.Message
	on    hooks
}

func newAssembler(on hooks) *assembler {
	return &assembler{state: asmIdle, on: on}
}

// Current returns the in-flight message, or nil.
func (a *assembler) Current() *model.Message {
	return a.cur
}

// =============================================================================
// FRAME INTAKE
// =============================================================================

// Feed applies one raw frame and drains every complete token or segment
// now available.
func (a *assembler) Feed(frame string) {
	a.buf += frame
	a.drain()
}

// ForceComplete terminates the in-flight message, if any. Used when the
// channel closes mid-message so the UI is not left with a permanently
// in-progress artifact.
func (a *assembler) ForceComplete() {
	if a.cur != nil && !a.cur.Completed {
		a.cur.TrimTrailingBreaks()
		a.cur.Thinking = false
		a.cur.Completed = true
	}
	a.cur = nil
	a.state = asmIdle
	a.buf = ""
}

// drain consumes the buffer until nothing complete remains.
func (a *assembler) drain() {
	for {
		switch a.state {
		case asmIdle:
			if !a.drainIdle() {
				return
			}
		default:
			if !a.drainMessage() {
				return
			}
		}
	}
}

// drainIdle looks for the start of the next message. Text between
// messages is noise and is discarded.
func (a *assembler) drainIdle() bool {
	start := protocol.KindMessage.Start()
	i := strings.Index(a.buf, start)
	if i < 0 {
		_, a.buf = protocol.Holdback(a.buf)
		return false
	}

	a.buf = a.buf[i+len(start):]

	welcome := a.on.welcomeNext()
	a.cur = a.on.begin(welcome)
	a.state = asmText

	if welcome {
		a.on.setPhase(model.PhaseInitializing)
	} else {
		a.on.setPhase(model.PhaseWorking)
	}
	return true
}

// tokensFor returns the tokens recognized in the current sub-state. The
// welcome turn only understands suggestions and errors; everything else
// it shows (and later discards) as text, matching the service's first
// ephemeral reply.
func (a *assembler) tokensFor() []string {
	end := protocol.KindMessage.End()

	switch a.state {
	case asmThinking:
		return []string{
			end,
			protocol.KindThinking.End(),
			protocol.KindAgentMetadata.Start(),
		}
	case asmDrained:
		return []string{end}
	default: // asmText
		if a.cur != nil && a.cur.Welcome {
			return []string{
				end,
				protocol.KindSuggestion.Start(),
				protocol.KindError.Start(),
			}
		}
		return []string{
			end,
			protocol.KindThinking.Start(),
			protocol.KindAgentMetadata.Start(),
			protocol.KindToolResult.Start(),
			protocol.KindConfirmation.Start(),
			protocol.KindSuggestion.Start(),
			protocol.KindDocLink.Start(),
			protocol.KindError.Start(),
		}
	}
}

// drainMessage handles one token (or flushes plain text) inside a
// message. Returns false when more input is needed.
func (a *assembler) drainMessage() bool {
	idx, tok := protocol.IndexToken(a.buf, a.tokensFor()...)
	if idx < 0 {
		emit, hold := protocol.Holdback(a.buf)
		a.appendText(emit)
		a.buf = hold
		return false
	}

	a.appendText(a.buf[:idx])
	a.buf = a.buf[idx:]

	switch tok {
	case protocol.KindMessage.End():
		a.buf = a.buf[len(tok):]
		a.finalize()
		return true

	case protocol.KindThinking.Start():
		a.buf = a.buf[len(tok):]
		a.cur.Thinking = true
		a.state = asmThinking
		a.on.setPhase(model.PhaseThinking)
		return true

	case protocol.KindThinking.End():
		a.buf = a.buf[len(tok):]
		a.cur.Thinking = false
		a.state = asmText
		a.on.setPhase(model.PhaseGeneratingResponse)
		return true

	default:
		return a.drainSegment(tok)
	}
}

// drainSegment consumes one structured segment whose start token sits at
// the front of the buffer. Returns false when its end token has not
// arrived yet.
func (a *assembler) drainSegment(startTok string) bool {
	kind, ok := kindForStart(startTok)
	if !ok {
		// Unrecognized token cannot happen: tokensFor only returns
		// grammar tokens. Treat as text to stay safe.
		a.appendText(a.buf[:len(startTok)])
		a.buf = a.buf[len(startTok):]
		return true
	}

	payload, rest, done := protocol.Extract(a.buf, kind)
	if !done {
		return false // keep buffering until the end token arrives
	}
	a.buf = rest

	a.handleSegment(kind, payload)
	return true
}

// kindForStart maps a start token back to its segment kind.
func kindForStart(tok string) (protocol.Kind, bool) {
	for _, k := range protocol.Kinds() {
		if k.Start() == tok {
			return k, true
		}
	}
	return 0, false
}

// =============================================================================
// SEGMENT HANDLING
// =============================================================================

// handleSegment applies one complete structured segment to the current
// message. Decode failures drop the segment and never abort the stream.
func (a *assembler) handleSegment(kind protocol.Kind, payload string) {
	switch kind {
	case protocol.KindAgentMetadata:
		md, err := ParseAgentMetadata(payload)
		if err != nil {
			a.on.decodeErr(err)
			return
		}
		a.cur.AgentMeta = md

	case protocol.KindToolResult:
		acts, err := ParseActions(payload)
		if err != nil {
			a.on.decodeErr(err)
			return
		}
		a.cur.Actions = append(a.cur.Actions, acts...)
		a.on.setPhase(model.PhaseFinalizing)

	case protocol.KindConfirmation:
		action, err := ParseConfirmation(payload)
		if err != nil {
			a.on.decodeErr(err)
			return
		}
		// A confirmation request ends the message: nothing after the
		// gate is rendered until the user answers.
		a.cur.Confirmation = &model.Confirmation{
			Action: action,
			Status: model.ConfirmationPending,
		}
		a.cur.Thinking = false
		a.cur.Completed = true
		a.state = asmDrained
		a.on.confirmed(a.cur)

	case protocol.KindSuggestion:
		a.cur.Suggestions = append(a.cur.Suggestions, strings.TrimSpace(payload))

	case protocol.KindDocLink:
		if link := strings.TrimSpace(payload); link != "" {
			a.cur.SourceLinks = append(a.cur.SourceLinks, link)
		}

	case protocol.KindError:
		me := ParseError(payload)
		a.cur.Err = me
		a.cur.Thinking = false
		a.cur.Completed = true
		a.state = asmDrained
		a.on.fail(me)
	}
}

// =============================================================================
// TEXT ACCUMULATION
// =============================================================================

// appendText flushes plain text into the active content buffer. While a
// buffer is still empty, leading whitespace is discarded so a stray blank
// chunk never flags "has content" prematurely; the trim is applied to the
// accumulated text, keeping the result independent of chunking.
func (a *assembler) appendText(t string) {
	if t == "" || a.cur == nil {
		return
	}

	switch a.state {
	case asmThinking:
		a.cur.ThinkingContent = appendSuppressed(a.cur.ThinkingContent, t)
	case asmText:
		before := a.cur.Content
		a.cur.Content = appendSuppressed(a.cur.Content, t)
		if a.cur.Content != before && !a.cur.Welcome {
			a.on.setPhase(model.PhaseGeneratingResponse)
		}
	case asmDrained:
		// Message already terminal; drop.
	}
}

// appendSuppressed appends t to acc, left-trimming while acc is empty.
func appendSuppressed(acc, t string) string {
	if acc == "" {
		t = strings.TrimLeft(t, " \t\r\n")
	}
	return acc + t
}

// finalize closes the current message at a message-end token.
func (a *assembler) finalize() {
	cur := a.cur
	if cur.Welcome {
		// The welcome turn keeps only its suggestions.
		cur.Content = ""
	} else {
		cur.TrimTrailingBreaks()
	}
	cur.Thinking = false
	cur.Completed = true

	a.cur = nil
	a.state = asmIdle
	a.on.setPhase(model.PhaseIdle)
	a.on.finish(cur)
}
