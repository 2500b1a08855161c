// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"fmt"

	"github.com/jeranaias/opschat/internal/model"
)

// =============================================================================
// OUTBOUND WIRE FORMAT
// =============================================================================

// OutboundMessage is the JSON payload written to the channel for every
// user-originated turn, including confirmation responses.
type OutboundMessage struct {
	Prompt  string            `json:"prompt"`
	Agent   string            `json:"agent,omitempty"`
	Context map[string]string `json:"context,omitempty"`
	Tags    []string          `json:"tags,omitempty"`
}

// EncodeContext flattens context pairs into the wire map. Pairs without
// a tag get a positional "tag N" key; a key already taken is
// disambiguated with a numeric suffix instead of overwriting the earlier
// value.
func EncodeContext(pairs []model.Context) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for i, p := range pairs {
		key := p.Tag
		if key == "" {
			key = fmt.Sprintf("tag %d", i+1)
		}
		if _, taken := out[key]; taken {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s %d", key, n)
				if _, taken := out[candidate]; !taken {
					key = candidate
					break
				}
			}
		}
		out[key] = p.Value
	}
	return out
}
