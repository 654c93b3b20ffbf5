package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/duckgate/duckgate/internal/cache"
	"github.com/duckgate/duckgate/internal/config"
	"github.com/duckgate/duckgate/internal/fingerprint"
	"github.com/duckgate/duckgate/internal/types"
	"github.com/duckgate/duckgate/internal/upstream"
)

// scriptedConnector replays a canned upstream exchange and records what it
// was called with.
type scriptedConnector struct {
	token      string
	tokenErr   error
	body       string
	newToken   string
	chatErr    error
	chatToken  string // token the Chat call received
	chatTurns  []types.MessageTurn
	tokenCalls int
}

func (s *scriptedConnector) NewToken(context.Context) (string, error) {
	s.tokenCalls++
	return s.token, s.tokenErr
}

func (s *scriptedConnector) Chat(_ context.Context, token, _ string, turns []types.MessageTurn) (*upstream.Response, error) {
	s.chatToken = token
	s.chatTurns = turns
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &upstream.Response{
		Body:     io.NopCloser(strings.NewReader(s.body)),
		NewToken: s.newToken,
	}, nil
}

func newTestPipeline(up Connector) (*Pipeline, *cache.MemoryStore) {
	store := cache.NewMemoryStore(100)
	return &Pipeline{
		Cache:        cache.New(store, time.Hour),
		Upstream:     up,
		CompletionID: "chatcmpl-test",
	}, store
}

const simpleExchange = "data: {\"role\":\"assistant\",\"message\":\"Hello!\"}\ndata: [DONE]\n"

func TestExecuteAggregate(t *testing.T) {
	up := &scriptedConnector{token: "vqd-1", body: simpleExchange, newToken: "vqd-2"}
	p, store := newTestPipeline(up)
	defer store.Close()

	rec := httptest.NewRecorder()
	p.Execute(context.Background(), rec, &types.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
	}, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(config.TokenHeader); got != "vqd-2" {
		t.Errorf("renewed token header: got %q", got)
	}

	var resp types.ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Choices[0].Message.Content != "Hello!" {
		t.Errorf("content: got %q", resp.Choices[0].Message.Content)
	}
	if up.tokenCalls != 1 {
		t.Errorf("expected one token acquisition, got %d", up.tokenCalls)
	}
}

func TestExecuteStream(t *testing.T) {
	up := &scriptedConnector{token: "vqd-1", body: simpleExchange, newToken: "vqd-2"}
	p, store := newTestPipeline(up)
	defer store.Close()

	rec := httptest.NewRecorder()
	p.Execute(context.Background(), rec, &types.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
		Stream:   true,
	}, "")

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type: got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"content":"Hello!"`) {
		t.Errorf("missing delta chunk in %s", body)
	}
	if strings.Count(body, "data: [DONE]") != 1 {
		t.Errorf("expected exactly one sentinel in %s", body)
	}
}

// TestExecutePrefersClientToken verifies that a caller-supplied token is
// forwarded untouched and no new token is requested.
func TestExecutePrefersClientToken(t *testing.T) {
	up := &scriptedConnector{body: simpleExchange}
	p, store := newTestPipeline(up)
	defer store.Close()

	rec := httptest.NewRecorder()
	p.Execute(context.Background(), rec, &types.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
	}, "vqd-client")

	if up.chatToken != "vqd-client" {
		t.Errorf("chat token: got %q, want caller's", up.chatToken)
	}
	if up.tokenCalls != 0 {
		t.Errorf("token acquisition should be skipped, got %d calls", up.tokenCalls)
	}
	// With no renewal from the upstream, the caller's token is echoed back.
	if got := rec.Header().Get(config.TokenHeader); got != "vqd-client" {
		t.Errorf("token header: got %q", got)
	}
}

// TestExecuteRecoversCachedToken verifies that an omitted token is recovered
// from the fingerprint of the history before the newest turn.
func TestExecuteRecoversCachedToken(t *testing.T) {
	up := &scriptedConnector{body: simpleExchange}
	p, store := newTestPipeline(up)
	defer store.Close()

	// A previous exchange stored its mapping: fingerprint over the turn
	// contents plus the assistant reply.
	fp := fingerprint.Conversation([]string{"hi", "Hello!"})
	store.Put(context.Background(), fp, "vqd-cached", time.Hour)

	rec := httptest.NewRecorder()
	p.Execute(context.Background(), rec, &types.ChatCompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []types.ChatMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "Hello!"},
			{Role: "user", Content: "and again"},
		},
	}, "")

	if up.chatToken != "vqd-cached" {
		t.Errorf("chat token: got %q, want cached", up.chatToken)
	}
	if up.tokenCalls != 0 {
		t.Errorf("token acquisition should be skipped on cache hit, got %d calls", up.tokenCalls)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d", rec.Code)
	}
}

// TestExecutePersistsMapping verifies that a completed exchange stores the
// fingerprint of history-plus-reply pointing at the renewed token.
func TestExecutePersistsMapping(t *testing.T) {
	up := &scriptedConnector{token: "vqd-1", body: simpleExchange, newToken: "vqd-2"}
	p, store := newTestPipeline(up)
	defer store.Close()

	rec := httptest.NewRecorder()
	p.Execute(context.Background(), rec, &types.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
	}, "")

	fp := fingerprint.Conversation([]string{"hi", "Hello!"})
	got, err := store.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("mapping not stored: %v", err)
	}
	if got != "vqd-2" {
		t.Errorf("stored token: got %q, want renewed", got)
	}
}

func TestExecuteTokenAcquisitionFailure(t *testing.T) {
	up := &scriptedConnector{tokenErr: upstream.ErrNoToken}
	p, store := newTestPipeline(up)
	defer store.Close()

	rec := httptest.NewRecorder()
	p.Execute(context.Background(), rec, &types.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
	}, "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
	var errResp types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if errResp.Error.Message == "" {
		t.Error("expected error message")
	}
}

func TestExecuteUpstreamFailure(t *testing.T) {
	up := &scriptedConnector{
		token:   "vqd-1",
		chatErr: &upstream.Error{StatusCode: http.StatusTooManyRequests, Body: []byte("slow down")},
	}
	p, store := newTestPipeline(up)
	defer store.Close()

	rec := httptest.NewRecorder()
	p.Execute(context.Background(), rec, &types.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
	}, "")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "slow down") {
		t.Errorf("error should carry upstream body text: %s", rec.Body.String())
	}
}

// TestExecuteForwardsNormalizedRoles verifies the system-to-user rewrite
// reaches the upstream.
func TestExecuteForwardsNormalizedRoles(t *testing.T) {
	up := &scriptedConnector{token: "vqd-1", body: simpleExchange}
	p, store := newTestPipeline(up)
	defer store.Close()

	rec := httptest.NewRecorder()
	p.Execute(context.Background(), rec, &types.ChatCompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []types.ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	}, "")

	if len(up.chatTurns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(up.chatTurns))
	}
	if up.chatTurns[0].Role != "user" {
		t.Errorf("system turn not rewritten: got %q", up.chatTurns[0].Role)
	}
	if up.chatTurns[0].Content != "be brief" {
		t.Errorf("content altered: got %q", up.chatTurns[0].Content)
	}
}
