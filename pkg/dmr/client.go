package dmr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultBaseURL is where Docker Model Runner listens when host-side
	// TCP access is enabled.
	DefaultBaseURL = "http://localhost:12434"

	// enginesPrefix is the OpenAI-compatible inference path.
	enginesPrefix = "/engines/v1"
)

// Client is the Docker Model Runner API client.
type Client struct {
	config *clientConfig
}

// clientConfig holds the client configuration.
type clientConfig struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a function that configures the client.
type Option func(*clientConfig)

// WithBaseURL sets a custom base URL for the runner.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// NewClient creates a new Docker Model Runner client.
//
// Example:
//
//	client := dmr.NewClient()
//	client := dmr.NewClient(dmr.WithBaseURL("http://localhost:12434"))
func NewClient(opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		// Inference requests can legitimately run for minutes while a
		// model loads, so no Timeout is set here.
		cfg.httpClient = &http.Client{}
	}
	return &Client{config: cfg}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.baseURL
}

// request makes a JSON request against the runner and decodes the response
// into result when provided.
func (c *Client) request(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{HTTPStatus: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Error is a non-2xx response from the runner.
type Error struct {
	HTTPStatus int
	Body       string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("dmr: http %d", e.HTTPStatus)
	}
	return fmt.Sprintf("dmr: http %d: %s", e.HTTPStatus, e.Body)
}

// Retryable reports whether the request may succeed on retry. Server errors
// and throttling are transient while a model loads; 4xx responses are not.
func (e *Error) Retryable() bool {
	return e.HTTPStatus >= 500 || e.HTTPStatus == http.StatusTooManyRequests
}
