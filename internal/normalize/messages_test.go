package normalize

import (
	"testing"

	"github.com/duckgate/duckgate/internal/types"
)

// TestMessagesRewritesSystemRole verifies that system turns are forwarded
// as user turns with their content untouched.
func TestMessagesRewritesSystemRole(t *testing.T) {
	turns := Messages([]types.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})

	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Role != "user" {
		t.Errorf("system role not rewritten: got %q", turns[0].Role)
	}
	if turns[0].Content != "be brief" {
		t.Errorf("content changed during rewrite: got %q", turns[0].Content)
	}
	if turns[1].Role != "user" || turns[2].Role != "assistant" {
		t.Errorf("other roles must pass through: got %q, %q", turns[1].Role, turns[2].Role)
	}
}

func TestContentText(t *testing.T) {
	tests := []struct {
		name    string
		content any
		want    string
	}{
		{"plain string", "hello", "hello"},
		{"nil", nil, ""},
		{
			"text parts",
			[]any{
				map[string]any{"type": "text", "text": "a"},
				map[string]any{"type": "text", "text": "b"},
			},
			"ab",
		},
		{
			"mixed parts drop non-text",
			[]any{
				map[string]any{"type": "image_url", "image_url": map[string]any{"url": "http://x"}},
				map[string]any{"type": "text", "text": "caption"},
			},
			"caption",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentText(tt.content); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContentsOrderPreserved(t *testing.T) {
	turns := []types.MessageTurn{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
	}
	contents := Contents(turns)
	if len(contents) != 2 || contents[0] != "one" || contents[1] != "two" {
		t.Errorf("unexpected contents: %v", contents)
	}
}
