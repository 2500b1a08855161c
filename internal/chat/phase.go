// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	"github.com/jeranaias/opschat/internal/model"
)

// =============================================================================
// PHASE DERIVATION
// =============================================================================

// derivePhase computes the conversation phase from message state. It is a
// pure function: explicit is the last phase the assembler or a send action
// set, and is only honored while a message is in flight or the user spoke
// last. Precedence order matters — confirmation states pre-empt the raw
// streaming substate to avoid flicker.
func derivePhase(msgs []*model.Message, explicit model.Phase) model.Phase {
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		if last.Role == model.RoleAssistant &&
			last.Confirmation != nil &&
			last.Confirmation.Status == model.ConfirmationConfirmed {
			return model.PhaseConfirming
		}
	}

	for _, m := range msgs {
		if m.HasPendingConfirmation() {
			return model.PhaseAwaitingConfirmation
		}
	}

	if len(msgs) > 0 && msgs[len(msgs)-1].Role == model.RoleUser {
		// The send action sets processing synchronously before any
		// reply arrives.
		return explicit
	}

	for _, m := range msgs {
		if !m.Completed {
			return explicit
		}
	}

	return model.PhaseIdle
}

// =============================================================================
// DEBOUNCED PHASE NOTIFIER
// =============================================================================

// DefaultPhaseDebounce is the delay used to absorb rapid phase bursts
// before surfacing a change to the UI. Presentation smoothing only; the
// derivation itself stays synchronous.
const DefaultPhaseDebounce = 150 * time.Millisecond

// PhaseNotifier coalesces rapid phase changes behind a fixed delay. Only
// the most recent value is delivered when the timer fires.
type PhaseNotifier struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending model.Phase
	stopped bool
	fn      func(model.Phase)
}

// NewPhaseNotifier creates a notifier delivering to fn after delay.
// A non-positive delay delivers synchronously.
func NewPhaseNotifier(delay time.Duration, fn func(model.Phase)) *PhaseNotifier {
	return &PhaseNotifier{delay: delay, fn: fn}
}

// Notify schedules delivery of p, replacing any not-yet-delivered value.
func (n *PhaseNotifier) Notify(p model.Phase) {
	if n.fn == nil {
		return
	}
	if n.delay <= 0 {
		n.fn(p)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}

	n.pending = p
	if n.timer == nil {
		n.timer = time.AfterFunc(n.delay, n.fire)
		return
	}
	n.timer.Reset(n.delay)
}

// fire delivers the pending phase.
func (n *PhaseNotifier) fire() {
	n.mu.Lock()
	p := n.pending
	stopped := n.stopped
	n.mu.Unlock()

	if !stopped {
		n.fn(p)
	}
}

// Stop cancels any pending delivery. Idempotent.
func (n *PhaseNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	if n.timer != nil {
		n.timer.Stop()
	}
}
