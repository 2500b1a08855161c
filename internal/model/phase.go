// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CONVERSATION PHASE
// =============================================================================

// Phase is the single derived "what is the chat doing right now" value
// consumed by the UI. It is recomputed from message state, never stored as
// an independent fact.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseInitializing         Phase = "initializing"
	PhaseThinking             Phase = "thinking"
	PhaseWorking              Phase = "working"
	PhaseProcessing           Phase = "processing"
	PhaseAwaitingConfirmation Phase = "awaitingConfirmation"
	PhaseGeneratingResponse   Phase = "generatingResponse"
	PhaseConfirming           Phase = "confirming"
	PhaseFinalizing           Phase = "finalizing"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Busy reports whether the phase should drive a busy indicator.
func (p Phase) Busy() bool {
	switch p {
	case PhaseIdle, PhaseAwaitingConfirmation:
		return false
	default:
		return true
	}
}

// Label returns a short human-readable description of the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseIdle:
		return "Ready"
	case PhaseInitializing:
		return "Initializing"
	case PhaseThinking:
		return "Thinking"
	case PhaseWorking:
		return "Working"
	case PhaseProcessing:
		return "Processing"
	case PhaseAwaitingConfirmation:
		return "Awaiting confirmation"
	case PhaseGeneratingResponse:
		return "Generating response"
	case PhaseConfirming:
		return "Confirming"
	case PhaseFinalizing:
		return "Finalizing"
	default:
		return string(p)
	}
}
