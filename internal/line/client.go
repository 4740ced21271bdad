// Package line is the client for the LINE Messaging API.
//
// It covers the two delivery operations the pipeline needs — Reply (bound
// to a short-lived reply token) and Push (any time) — plus webhook payload
// types and request signature verification. Delivery is fire and forget:
// callers log failures and never retry inline.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/freyabot/freya/internal/log"
)

// DefaultBaseURL is the production LINE Messaging API endpoint.
const DefaultBaseURL = "https://api.line.me"

// defaultPushRate keeps pushes under the platform quota. Bursty batch runs
// smooth out instead of tripping 429s.
const (
	defaultPushRate  = rate.Limit(10) // requests per second
	defaultPushBurst = 5
)

// Client calls the LINE Messaging API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different API host. Tests use this
// with httptest servers.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithPushRate overrides the push rate limit.
func WithPushRate(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewClient creates a Client authenticated with the channel access token.
func NewClient(channelToken string, logger log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		token:      channelToken,
		limiter:    rate.NewLimiter(defaultPushRate, defaultPushBurst),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply answers the event that issued replyToken. The token is single-use
// and expires within the platform's webhook window, so Reply is only valid
// shortly after the triggering event.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	payload := struct {
		ReplyToken string        `json:"replyToken"`
		Messages   []textMessage `json:"messages"`
	}{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/v2/bot/message/reply", payload)
}

// Push sends a message to a user outside any reply window. Pushes pass
// through the rate limiter.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for push rate limiter: %w", err)
	}
	payload := struct {
		To       string        `json:"to"`
		Messages []textMessage `json:"messages"`
	}{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/v2/bot/message/push", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling LINE API %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("LINE API %s returned %d: %s", path, resp.StatusCode, detail)
	}

	c.logger.Debug("message delivered", "path", path)
	return nil
}
