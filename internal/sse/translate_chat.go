// Package sse re-encodes decoded upstream events as OpenAI chat completion
// output, either as a live event stream or as one aggregated response.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/duckgate/duckgate/internal/fingerprint"
	"github.com/duckgate/duckgate/internal/stream"
	"github.com/duckgate/duckgate/internal/types"
)

// TranslateChatOptions holds options for SSE chat translation.
type TranslateChatOptions struct {
	// CompletionID is the chunk id, constant per deployment.
	CompletionID string
	// OnComplete is invoked once with the full assistant text after the
	// terminal event is classified and before the [DONE] sentinel is
	// written. It is never invoked for streams that end without a terminal
	// event, so an aborted stream persists nothing.
	OnComplete func(fullText string)
	Verbose    bool
}

// TranslateChat reads upstream events and writes OpenAI chat completion SSE
// chunks to the response writer.
//
// The upstream is inconsistent about which event carries the end-of-turn
// signal: some exchanges close with a success frame, some with the literal
// done marker, some with both. Each content chunk is therefore held back
// until the next event proves it is not the last one (one-event lookahead),
// so the final content chunk can carry finish_reason when the upstream ends
// with a success frame instead of the done marker.
func TranslateChat(w http.ResponseWriter, body io.ReadCloser, model string, opts TranslateChatOptions) {
	defer body.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		return
	}

	reader := stream.NewReader(body)
	systemFP := fingerprint.Model(model)

	var pending *types.ChatCompletionChunk
	var accumulated strings.Builder
	done := false

	writeChunk := func(chunk *types.ChatCompletionChunk) {
		data, err := json.Marshal(chunk)
		if err != nil {
			slog.Error("failed to marshal SSE chunk", "error", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	writeDone := func() {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}

	flushPending := func() {
		if pending != nil {
			writeChunk(pending)
			pending = nil
		}
	}

	makeChunk := func(delta types.ChatDelta, finish *string) *types.ChatCompletionChunk {
		return &types.ChatCompletionChunk{
			ID:                opts.CompletionID,
			Object:            "chat.completion.chunk",
			Created:           time.Now().Unix(),
			Model:             model,
			SystemFingerprint: systemFP,
			Choices: []types.ChatChunkChoice{
				{Index: 0, Delta: delta, FinishReason: finish},
			},
		}
	}

	complete := func() {
		if opts.OnComplete != nil {
			opts.OnComplete(accumulated.String())
		}
		writeDone()
		done = true
	}

	for {
		evt, err := reader.Next()
		if err != nil {
			if err != io.EOF && opts.Verbose {
				slog.Warn("upstream stream read failed", "error", err)
			}
			break
		}
		if done {
			// Trailing frames after the terminal event are ignored so the
			// sentinel is never duplicated.
			continue
		}

		switch evt.Kind {
		case stream.KindDelta:
			// A new delta proves the held chunk was not the last one.
			flushPending()
			pending = makeChunk(types.ChatDelta{Role: evt.Role, Content: evt.Text}, nil)
			accumulated.WriteString(evt.Text)

		case stream.KindSuccessNoMessage, stream.KindSuccessEmpty:
			// Explicit end-of-turn: the held chunk is the final content
			// chunk, so it carries the finish reason itself.
			if pending != nil {
				pending.Choices[0].FinishReason = types.StringPtr("stop")
				flushPending()
			} else {
				writeChunk(makeChunk(types.ChatDelta{}, types.StringPtr("stop")))
			}
			complete()

		case stream.KindDone:
			// Literal done marker: flush the held chunk unchanged and close
			// with a synthetic empty-delta stop chunk.
			flushPending()
			writeChunk(makeChunk(types.ChatDelta{}, types.StringPtr("stop")))
			complete()

		case stream.KindBlank, stream.KindMalformed:
			// Swallowed: blank frames trail most exchanges and a single
			// corrupt frame must not interrupt the stream.
		}
	}
}
