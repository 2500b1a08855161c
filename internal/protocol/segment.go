// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// SEGMENT EXTRACTION
// =============================================================================

// Extract looks for a complete segment of the given kind in buf: the span
// from the first start token to the first end token after it. On success it
// returns the inner payload and buf with the whole span removed. When the
// segment has not fully arrived yet it returns ok=false and the caller keeps
// buffering. An empty payload between adjacent tags is a valid segment.
func Extract(buf string, k Kind) (payload, rest string, ok bool) {
	start := k.Start()
	end := k.End()

	si := strings.Index(buf, start)
	if si < 0 {
		return "", buf, false
	}

	body := si + len(start)
	ei := strings.Index(buf[body:], end)
	if ei < 0 {
		return "", buf, false
	}
	ei += body

	return buf[body:ei], buf[:si] + buf[ei+len(end):], true
}

// ExtractAll removes every complete segment of a repeatable kind from buf,
// in order of appearance, and returns the payloads with the stripped buffer.
// Incomplete trailing segments are left in place.
func ExtractAll(buf string, k Kind) (payloads []string, rest string) {
	rest = buf
	for {
		p, r, ok := Extract(rest, k)
		if !ok {
			return payloads, rest
		}
		payloads = append(payloads, p)
		rest = r
	}
}

// Contains reports whether buf holds at least one complete segment of kind k.
func Contains(buf string, k Kind) bool {
	_, _, ok := Extract(buf, k)
	return ok
}

// =============================================================================
// TOKEN SCANNING
// =============================================================================

// IndexToken returns the byte offset of the first occurrence of any of the
// given tokens in buf, together with the token found. Returns -1 when none
// occurs. Ties (identical offsets cannot happen for distinct tokens that are
// not prefixes of each other) resolve to the earliest offset.
func IndexToken(buf string, tokens ...string) (int, string) {
	best := -1
	var found string
	for _, tok := range tokens {
		if i := strings.Index(buf, tok); i >= 0 && (best < 0 || i < best) {
			best = i
			found = tok
		}
	}
	return best, found
}

// Holdback splits buf into a part that is safe to emit as plain text and a
// tail that must be retained because it could be the beginning of a token
// still in flight. The tail is the longest suffix of buf that is a proper
// prefix of any grammar token.
func Holdback(buf string) (emit, hold string) {
	maxTail := 0
	for _, tok := range allTokens {
		if len(tok)-1 > maxTail {
			maxTail = len(tok) - 1
		}
	}
	if maxTail > len(buf) {
		maxTail = len(buf)
	}

	for n := maxTail; n > 0; n-- {
		tail := buf[len(buf)-n:]
		for _, tok := range allTokens {
			if len(tok) > n && tok[:n] == tail {
				return buf[:len(buf)-n], tail
			}
		}
	}
	return buf, ""
}

// =============================================================================
// LOOSE JSON DECODING
// =============================================================================

// singleQuoted matches a single-quoted literal with no embedded quotes,
// mirroring the agent's pseudo-JSON serialization.
var singleQuoted = regexp.MustCompile(`'([^']*)'`)

// NormalizeQuotes rewrites single-quoted literals to double-quoted ones so
// the payload can be decoded as JSON. This compensates for a serialization
// looseness on the agent side and is applied before every structured decode.
func NormalizeQuotes(s string) string {
	return singleQuoted.ReplaceAllString(s, `"$1"`)
}

// DecodeError reports a structured payload that failed to decode. It is
// recoverable: the segment is dropped and streaming continues.
type DecodeError struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeLoose decodes a structured segment payload into v, normalizing
// single quotes first. A failure never aborts the stream; callers drop the
// segment and keep going.
func DecodeLoose(k Kind, payload string, v any) error {
	payload = strings.TrimSpace(NormalizeQuotes(payload))
	if payload == "" {
		return &DecodeError{Kind: k, Err: fmt.Errorf("empty payload")}
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return &DecodeError{Kind: k, Err: err}
	}
	return nil
}
