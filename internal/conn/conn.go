// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/opschat/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// ManualCloseReason marks a close initiated by this client on purpose.
// Peers and the local close callback treat it as "not an error".
const ManualCloseReason = "__MANUAL_DISCONNECT__"

// closeGrace bounds how long a deliberate disconnect waits for the close
// handshake before tearing the socket down.
const closeGrace = 2 * time.Second

// ErrNotConnected is returned for writes on a closed channel.
var ErrNotConnected = errors.New("channel not connected")

// =============================================================================
// MANAGER
// =============================================================================

// Callbacks receives channel lifecycle events. OnFrame is invoked once
// per inbound frame, in arrival order, from a single goroutine. OnClose
// fires exactly once per connection; deliberate is true when the local
// side requested the disconnect.
type Callbacks struct {
	OnOpen  func()
	OnFrame func(data string)
	OnClose func(deliberate bool, err error)
}

// Manager owns the websocket to the agent service. At most one
// connection is open at a time; Connect on an open manager is a no-op.
type Manager struct {
	endpoint string
	cb       Callbacks
	dialer   *websocket.Dialer

	mu         sync.Mutex
	ws         *websocket.Conn
	deliberate bool
	lastErr    error
}

// NewManager creates a manager for the given websocket endpoint.
func NewManager(endpoint string, cb Callbacks) *Manager {
	return &Manager{
		endpoint: endpoint,
		cb:       cb,
		dialer:   websocket.DefaultDialer,
	}
}

// Connect dials the service for the given chat. An empty chatID asks the
// service to create a new conversation. Calling Connect while a channel
// is open does nothing.
func (m *Manager) Connect(ctx context.Context, chatID string) error {
	m.mu.Lock()
	if m.ws != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	endpoint := m.endpoint
	if chatID != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		}
		q := u.Query()
		q.Set("chatId", chatID)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	ws, _, err := m.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if m.ws != nil {
		// Lost the race to a concurrent Connect; keep the winner.
		m.mu.Unlock()
		ws.Close()
		return nil
	}
	m.ws = ws
	m.deliberate = false
	m.lastErr = nil
	m.mu.Unlock()

	if m.cb.OnOpen != nil {
		m.cb.OnOpen()
	}
	go m.readLoop(ws)
	return nil
}

// Connected reports whether a channel is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ws != nil
}

// LastError returns the most recent connection failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Disconnect closes the channel on purpose. The close callback will see
// deliberate=true. Safe to call on a closed manager.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	ws := m.ws
	if ws == nil {
		m.mu.Unlock()
		return
	}
	m.deliberate = true
	m.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, ManualCloseReason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	_ = ws.Close()
}

// SendPrompt encodes and writes one outbound turn. Implements the chat
// package's sender contract.
func (m *Manager) SendPrompt(prompt, agent string, ctx []model.Context, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws == nil {
		return ErrNotConnected
	}
	return m.ws.WriteJSON(OutboundMessage{
		Prompt:  prompt,
		Agent:   agent,
		Context: EncodeContext(ctx),
		Tags:    tags,
	})
}

// =============================================================================
// READER
// =============================================================================

// readLoop pumps inbound frames until the connection dies, then fires
// the close callback exactly once.
func (m *Manager) readLoop(ws *websocket.Conn) {
	var readErr error
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if m.cb.OnFrame != nil {
			m.cb.OnFrame(string(data))
		}
	}

	m.mu.Lock()
	deliberate := m.deliberate
	if m.ws == ws {
		m.ws = nil
	}
	m.mu.Unlock()

	// The peer echoing our sentinel reason also counts as deliberate, in
	// case the local flag was lost to a reconnect race.
	var ce *websocket.CloseError
	if errors.As(readErr, &ce) &&
		ce.Code == websocket.CloseNormalClosure &&
		ce.Text == ManualCloseReason {
		deliberate = true
	}

	if deliberate || websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
		readErr = nil
	}
	m.mu.Lock()
	m.lastErr = readErr
	m.mu.Unlock()

	if m.cb.OnClose != nil {
		m.cb.OnClose(deliberate, readErr)
	}
}
