// Package upstream talks to the chat backend. Two endpoints matter: a
// status endpoint that issues continuation tokens through a response header,
// and a chat endpoint that streams the assistant turn and renews the token
// in its own response header.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/duckgate/duckgate/internal/codec"
	"github.com/duckgate/duckgate/internal/config"
	"github.com/duckgate/duckgate/internal/types"
)

// upstreamHTTPTimeout is the maximum time allowed for the upstream SSE
// request. Streams can be long-lived, so the timeout is generous.
const upstreamHTTPTimeout = 5 * time.Minute

// ErrNoToken is returned when the status endpoint does not yield a
// continuation token.
var ErrNoToken = errors.New("upstream issued no continuation token")

// Error represents a failed upstream chat request with error details.
type Error struct {
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	return codec.FormatUpstreamError(e.StatusCode, e.Body)
}

// Response wraps a successful upstream chat response. Body is the live SSE
// byte stream; NewToken is the renewed continuation token from the response
// header (empty if the upstream did not renew).
type Response struct {
	Body     io.ReadCloser
	NewToken string
}

// Client makes requests to the chat backend.
type Client struct {
	httpClient *http.Client
	statusURL  string
	chatURL    string
	userAgent  string
	verbose    bool
}

// NewClient creates a new upstream client from server configuration.
func NewClient(cfg *config.ServerConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: upstreamHTTPTimeout},
		statusURL:  cfg.StatusURL,
		chatURL:    cfg.ChatURL,
		userAgent:  cfg.UserAgent,
		verbose:    cfg.Verbose,
	}
}

// NewToken requests a fresh continuation token from the status endpoint.
// The response body is irrelevant; the token header is the only consumed
// artifact.
func (c *Client) NewToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(config.TokenAcceptHeader, "1")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	token := resp.Header.Get(config.TokenHeader)
	if token == "" {
		return "", ErrNoToken
	}
	if c.verbose {
		slog.Info("upstream.token.issued", "status", resp.StatusCode)
	}
	return token, nil
}

// Chat sends the normalized history with the continuation token and returns
// the streaming response. A non-success upstream status is drained into an
// *Error carrying the raw body text.
func (c *Client) Chat(ctx context.Context, token, model string, turns []types.MessageTurn) (*Response, error) {
	payload := types.UpstreamPayload{
		Model:    model,
		Messages: turns,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(config.TokenHeader, token)

	if c.verbose {
		slog.Info("upstream.request", "model", model, "turns", len(turns))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream chat request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &Error{StatusCode: resp.StatusCode, Body: errBody}
	}

	if c.verbose {
		slog.Info("upstream.response", "status", resp.StatusCode)
	}

	return &Response{
		Body:     resp.Body,
		NewToken: resp.Header.Get(config.TokenHeader),
	}, nil
}
