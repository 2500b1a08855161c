// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// REST CLIENT
// =============================================================================

// maxTitleLen bounds a derived chat title.
const maxTitleLen = 500

// ChatSummary is one entry in the saved-conversation list.
type ChatSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Title returns the display title: the first line of the name, bounded.
func (s ChatSummary) Title() string {
	name := s.Name
	if i := strings.IndexAny(name, "\r\n"); i >= 0 {
		name = name[:i]
	}
	if r := []rune(name); len(r) > maxTitleLen {
		name = string(r[:maxTitleLen])
	}
	return name
}

// Client talks to the agent service's conversation store.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a history client for the given base URL.
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Chats lists saved conversations. Unnamed conversations are the service's
// internal scratch entries and are filtered out.
func (c *Client) Chats(ctx context.Context) ([]ChatSummary, error) {
	var all []ChatSummary
	if err := c.get(ctx, c.base+"/chats", &all); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	out := all[:0]
	for _, s := range all {
		if s.Name != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// Messages fetches the stored records for one conversation, oldest first.
func (c *Client) Messages(ctx context.Context, chatID string) ([]Record, error) {
	var recs []Record
	url := fmt.Sprintf("%s/chats/%s/messages", c.base, chatID)
	if err := c.get(ctx, url, &recs); err != nil {
		return nil, fmt.Errorf("load chat %s: %w", chatID, err)
	}
	return recs, nil
}

// Rename sets a conversation's name.
func (c *Client) Rename(ctx context.Context, chatID, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/chats/%s", c.base, chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("rename chat %s: %w", chatID, err)
	}
	return nil
}

// Delete removes a conversation and its messages.
func (c *Client) Delete(ctx context.Context, chatID string) error {
	url := fmt.Sprintf("%s/chats/%s", c.base, chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return nil
}

// get issues a GET and decodes the JSON response into v.
func (c *Client) get(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

// do executes a request, checking status and optionally decoding JSON.
func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
