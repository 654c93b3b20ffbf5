// Package normalize converts inbound OpenAI-shaped messages into the flat
// turn sequence the upstream accepts.
package normalize

import (
	"strings"

	"github.com/duckgate/duckgate/internal/types"
)

// Messages flattens each message's content to text and rewrites system roles
// to user. The upstream rejects system turns outright, so they are never
// forwarded verbatim.
func Messages(msgs []types.ChatMessage) []types.MessageTurn {
	turns := make([]types.MessageTurn, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role == "system" {
			role = "user"
		}
		turns = append(turns, types.MessageTurn{
			Role:    role,
			Content: ContentText(m.Content),
		})
	}
	return turns
}

// ContentText flattens a message content value to plain text. OpenAI clients
// send either a string or an array of content parts; text parts are joined
// in order and non-text parts are dropped.
func ContentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, raw := range c {
			part, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if partType, _ := part["type"].(string); partType != "text" && partType != "input_text" {
				continue
			}
			if text, _ := part["text"].(string); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}

// Contents extracts the ordered turn contents for fingerprinting. Roles are
// deliberately excluded, so the digest is identical before and after the
// system-to-user rewrite.
func Contents(turns []types.MessageTurn) []string {
	out := make([]string, len(turns))
	for i, turn := range turns {
		out[i] = turn.Content
	}
	return out
}
