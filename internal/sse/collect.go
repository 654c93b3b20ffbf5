package sse

import (
	"io"
	"strings"
	"time"

	"github.com/duckgate/duckgate/internal/fingerprint"
	"github.com/duckgate/duckgate/internal/stream"
	"github.com/duckgate/duckgate/internal/types"
)

// Collect decodes the entire upstream stream and folds every message delta,
// in arrival order, into a single chat completion response. Usage counters
// are present but zero: the upstream does not report token usage, which is a
// permanent limitation of this gateway, not a gap to fill in later.
func Collect(body io.ReadCloser, model, completionID string, onComplete func(fullText string)) *types.ChatCompletionResponse {
	defer body.Close()

	reader := stream.NewReader(body)
	var text strings.Builder
	terminated := false

	for {
		evt, err := reader.Next()
		if err != nil {
			break
		}
		switch evt.Kind {
		case stream.KindDelta:
			text.WriteString(evt.Text)
		case stream.KindDone, stream.KindSuccessNoMessage, stream.KindSuccessEmpty:
			terminated = true
		}
	}

	fullText := text.String()
	// Persist only after a terminal event: a stream cut off mid-way must not
	// poison the continuity mapping with a partial exchange.
	if terminated && onComplete != nil {
		onComplete(fullText)
	}

	return &types.ChatCompletionResponse{
		ID:                completionID,
		Object:            "chat.completion",
		Created:           time.Now().Unix(),
		Model:             model,
		SystemFingerprint: fingerprint.Model(model),
		Choices: []types.ChatChoice{
			{
				Index:        0,
				Message:      types.ChatResponseMsg{Role: "assistant", Content: fullText},
				FinishReason: types.StringPtr("stop"),
			},
		},
		Usage: &types.Usage{},
	}
}
