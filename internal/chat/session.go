// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "sync"

// =============================================================================
// SESSION FLAGS
// =============================================================================

// sessionDismissRecommended suppresses agent switch recommendations for
// the rest of the session, across all chats.
const sessionDismissRecommended = "dismissed-agent-recommendation"

// Session holds flags shared by every chat in the panel session. It
// outlives individual chats but not the process.
type Session struct {
	mu    sync.Mutex
	flags map[string]bool
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{flags: make(map[string]bool)}
}

// Set marks a flag for the rest of the session.
func (s *Session) Set(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = true
}

// Has reports whether a flag has been set.
func (s *Session) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[key]
}
