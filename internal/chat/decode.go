// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/jeranaias/opschat/internal/model"
	"github.com/jeranaias/opschat/internal/protocol"
)

// errEmptyMetadata rejects agent metadata that names no agent at all.
var errEmptyMetadata = errors.New("metadata names no agent")

// =============================================================================
// STRUCTURED PAYLOAD DECODING
// =============================================================================

// ParseActions decodes a tool-result payload into resource actions. The
// payload is an object or an array of objects; the name field may itself
// be a string or an array of names, yielding one action per name. Entries
// without a kind and at least one name are skipped.
func ParseActions(payload string) ([]model.Action, error) {
	var v any
	if err := protocol.DecodeLoose(protocol.KindToolResult, payload, &v); err != nil {
		return nil, err
	}
	return actionsFromValue(v), nil
}

// actionsFromValue walks a decoded tool-result value.
func actionsFromValue(v any) []model.Action {
	switch t := v.(type) {
	case []any:
		var acts []model.Action
		for _, item := range t {
			acts = append(acts, actionsFromValue(item)...)
		}
		return acts
	case map[string]any:
		kind := stringField(t, "kind")
		if kind == "" {
			return nil
		}

		var names []string
		switch n := t["name"].(type) {
		case string:
			names = []string{n}
		case []any:
			for _, item := range n {
				if s, ok := item.(string); ok {
					names = append(names, s)
				}
			}
		}

		var acts []model.Action
		for _, name := range names {
			if name == "" {
				continue
			}
			acts = append(acts, model.Action{
				Type:  model.ActionButton,
				Label: kind + ": " + name,
				Resource: model.Resource{
					Kind:      kind,
					Type:      stringField(t, "type"),
					Name:      name,
					Namespace: stringField(t, "namespace"),
					Cluster:   stringField(t, "cluster"),
				},
			})
		}
		return acts
	default:
		return nil
	}
}

// stringField reads a string field from a decoded JSON object.
func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// ParseConfirmation decodes a confirmation-request payload.
func ParseConfirmation(payload string) (*model.ConfirmationAction, error) {
	var action model.ConfirmationAction
	if err := protocol.DecodeLoose(protocol.KindConfirmation, payload, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

// ParseAgentMetadata decodes an agent-metadata payload.
func ParseAgentMetadata(payload string) (*model.AgentMetadata, error) {
	var md model.AgentMetadata
	if err := protocol.DecodeLoose(protocol.KindAgentMetadata, payload, &md); err != nil {
		return nil, err
	}
	if md.Name == "" && md.Recommended == "" {
		return nil, &protocol.DecodeError{Kind: protocol.KindAgentMetadata, Err: errEmptyMetadata}
	}
	return &md, nil
}

// ParseChatMetadata decodes a chat-metadata payload.
func ParseChatMetadata(payload string) (*model.ChatMetadata, error) {
	var md model.ChatMetadata
	if err := protocol.DecodeLoose(protocol.KindChatMetadata, payload, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// ParseError decodes an error payload. Error bodies are usually
// structured, but degraded agents emit bare text; both are accepted.
func ParseError(payload string) *model.MessageError {
	var me model.MessageError
	if err := protocol.DecodeLoose(protocol.KindError, payload, &me); err == nil {
		if me.Message != "" || me.Key != "" {
			return &me
		}
	}

	if text := strings.TrimSpace(payload); text != "" {
		return &model.MessageError{Message: text}
	}
	return &model.MessageError{Key: "error.message.unknown", Message: "agent reported an error"}
}
