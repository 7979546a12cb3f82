// Package hub registers the companion with the matchmaking hub so callers
// can find it through its public tunnel URL.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the hosted hub.
const DefaultBaseURL = "https://slowlyunhinged-hub-54127830651.us-central1.run.app"

// Registration describes this agent to the hub.
type Registration struct {
	ScreenName            string `json:"screenName"`
	TunnelURL             string `json:"tunnelUrl"`
	RequiresNanobananaKey bool   `json:"requiresNanobananaKey"`
	HasLocalNanobananaKey bool   `json:"hasLocalNanobananaKey"`
}

// Client talks to the hub's agent API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at a different hub.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a hub client.
func NewClient(opts ...Option) *Client {
	c := &Client{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Register announces the agent to the hub.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.post(ctx, "/api/register-agent", reg)
}

// Unregister removes the agent from the hub. Callers treat failures as
// non-fatal since the hub expires stale registrations on its own.
func (c *Client) Unregister(ctx context.Context, screenName string) error {
	body := map[string]string{"screenName": screenName}
	return c.post(ctx, "/api/unregister-agent", body)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("hub: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("hub: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hub: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("hub: %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
