// Package pairing talks to the Gemini generateContent API and builds the
// prompts for food pairing and drinking-window suggestions.
package pairing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mycellarapp/cellar-server/internal/ratelimit"
)

const (
	defaultTimeout           = 30 * time.Second
	defaultRequestsPerMinute = 20
	maxErrorBody             = 512
)

// Sentinel errors for Gemini operations.
var (
	ErrNotConfigured = errors.New("pairing: API key not configured")
	ErrModelNotFound = errors.New("pairing: model not found")
	ErrRateLimited   = errors.New("pairing: rate limited by server")
	ErrUpstream      = errors.New("pairing: upstream error")
)

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	// Models are tried in order; a model the API does not know falls
	// through to the next one.
	Models            []string
	Timeout           time.Duration
	RequestsPerMinute int
	Logger            *slog.Logger
}

// Client is a rate-limited Gemini client.
type Client struct {
	http    *http.Client
	apiKey  string
	baseURL string
	models  []string
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a client. It can be built without an API key; calls then fail
// with ErrNotConfigured.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		models:  opts.Models,
		limiter: ratelimit.PerInterval(rpm, time.Minute, max(1, rpm/4)),
		logger:  logger,
	}
}

// Configured reports whether an API key and at least one model are set.
func (c *Client) Configured() bool {
	return c.apiKey != "" && len(c.models) > 0
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends prompt as a single user turn and returns the first
// candidate's text, or "" when the model returned none. key scopes the
// outbound rate limit, normally the user id.
func (c *Client) Generate(ctx context.Context, key, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx, key); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for _, model := range c.models {
		text, err := c.generate(ctx, model, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !errors.Is(err, ErrModelNotFound) {
			return "", err
		}
		c.logger.Warn("gemini model not found, trying fallback", "model", model)
	}
	return "", lastErr
}

func (c *Client) generate(ctx context.Context, model string, body []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	c.logger.Debug("gemini request", "model", model)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classify(resp.StatusCode, raw)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// classify maps a failed response to a sentinel. A model-not-found answer
// may come back as 404 or as a NOT_FOUND status in the error body.
func classify(status int, raw []byte) error {
	var e errorResponse
	_ = json.Unmarshal(raw, &e)

	if status == http.StatusNotFound || e.Error.Status == "NOT_FOUND" {
		return fmt.Errorf("%w: %s", ErrModelNotFound, e.Error.Message)
	}
	if status == http.StatusTooManyRequests {
		return ErrRateLimited
	}

	msg := e.Error.Message
	if msg == "" {
		msg = string(raw)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
	}
	return fmt.Errorf("%w: status %d: %s", ErrUpstream, status, msg)
}
