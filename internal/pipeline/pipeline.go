// Package pipeline orchestrates one chat exchange: token resolution,
// upstream invocation, stream or aggregate translation, and persistence of
// the continuity mapping.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/duckgate/duckgate/internal/cache"
	"github.com/duckgate/duckgate/internal/codec"
	"github.com/duckgate/duckgate/internal/config"
	"github.com/duckgate/duckgate/internal/fingerprint"
	"github.com/duckgate/duckgate/internal/normalize"
	"github.com/duckgate/duckgate/internal/sse"
	"github.com/duckgate/duckgate/internal/types"
	"github.com/duckgate/duckgate/internal/upstream"
)

// Connector is the upstream collaborator. *upstream.Client is the production
// implementation; tests substitute scripted ones.
type Connector interface {
	NewToken(ctx context.Context) (string, error)
	Chat(ctx context.Context, token, model string, turns []types.MessageTurn) (*upstream.Response, error)
}

// Pipeline processes chat completion requests end to end.
type Pipeline struct {
	Cache    *cache.TokenCache
	Upstream Connector
	// CompletionID is generated once at startup and stamped on every
	// emitted completion and chunk.
	CompletionID string
	Verbose      bool
}

// Execute runs one exchange. clientToken is the caller-supplied continuation
// token (empty if the caller did not send one).
func (p *Pipeline) Execute(ctx context.Context, w http.ResponseWriter, req *types.ChatCompletionRequest, clientToken string) {
	turns := normalize.Messages(req.Messages)
	contents := normalize.Contents(turns)

	token := p.resolveToken(ctx, clientToken, contents)
	if token == "" {
		codec.WriteOpenAIError(w, http.StatusServiceUnavailable,
			"Unable to obtain an upstream session token")
		return
	}

	resp, err := p.Upstream.Chat(ctx, token, req.Model, turns)
	if err != nil {
		codec.WriteOpenAIError(w, http.StatusBadGateway, err.Error())
		return
	}

	// The renewed token is what the caller must send on the next turn, and
	// what the continuity mapping must point at.
	newToken := resp.NewToken
	if newToken == "" {
		newToken = token
	}
	w.Header().Set(config.TokenHeader, newToken)

	// Invoked by the translators only after the terminal event is
	// classified, so aborted exchanges persist nothing.
	persist := func(fullText string) {
		fp := fingerprint.Conversation(append(contents, fullText))
		p.Cache.Save(ctx, fp, newToken)
	}

	if req.Stream {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		sse.TranslateChat(w, resp.Body, req.Model, sse.TranslateChatOptions{
			CompletionID: p.CompletionID,
			OnComplete:   persist,
			Verbose:      p.Verbose,
		})
		return
	}

	completion := sse.Collect(resp.Body, req.Model, p.CompletionID, persist)
	codec.WriteJSON(w, http.StatusOK, completion)
}

// resolveToken picks the continuation token for this exchange: the caller's
// own token wins, then a cached token recovered from the fingerprint of the
// history before the new turn, then a fresh one from the status endpoint.
// Returns "" only when every path failed.
func (p *Pipeline) resolveToken(ctx context.Context, clientToken string, contents []string) string {
	if clientToken != "" {
		return clientToken
	}

	if len(contents) > 1 {
		fp := fingerprint.Conversation(contents[:len(contents)-1])
		if token, ok := p.Cache.Lookup(ctx, fp); ok {
			if p.Verbose {
				slog.Info("session.token.recovered", "fingerprint", fp[:12])
			}
			return token
		}
	}

	token, err := p.Upstream.NewToken(ctx)
	if err != nil {
		slog.Error("session.token.acquisition.failed", "error", err)
		return ""
	}
	return token
}
