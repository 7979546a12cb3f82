package dmr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	warmupAttempts = 10
	warmupInterval = time.Second

	pullAttempts = 60
	pullInterval = 5 * time.Second
)

// Model describes one model known to the runner.
type Model struct {
	ID      string   `json:"id"`
	Tags    []string `json:"tags"`
	Created int64    `json:"created"`
}

// ListModels returns the models currently available to the runner.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.request(ctx, http.MethodGet, "/models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// CreateModel asks the runner to pull a model. The call returns once the
// pull is registered; readiness is observed through ListModels.
func (c *Client) CreateModel(ctx context.Context, from string) error {
	body := map[string]string{"from": from}
	return c.request(ctx, http.MethodPost, "/models/create", body, nil)
}

// Ping reports whether the runner is answering at all.
func (c *Client) Ping(ctx context.Context) error {
	return c.request(ctx, http.MethodGet, "/models", nil, nil)
}

// EnsureModels waits for the runner to come up, requests any of the wanted
// models that are missing, and waits until all of them are available.
func (c *Client) EnsureModels(ctx context.Context, log *slog.Logger, wanted ...string) error {
	if err := c.warmup(ctx); err != nil {
		return err
	}

	models, err := c.ListModels(ctx)
	if err != nil {
		return err
	}

	var missing []string
	for _, want := range wanted {
		if !hasModel(models, want) {
			missing = append(missing, want)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	for _, name := range missing {
		log.Info("pulling model", "model", name)
		if err := c.CreateModel(ctx, name); err != nil {
			return fmt.Errorf("create model %s: %w", name, err)
		}
	}

	for attempt := 0; attempt < pullAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pullInterval):
		}

		models, err := c.ListModels(ctx)
		if err != nil {
			log.Warn("model listing failed while waiting for pull", "error", err)
			continue
		}

		remaining := missing[:0]
		for _, name := range missing {
			if !hasModel(models, name) {
				remaining = append(remaining, name)
			}
		}
		missing = remaining
		if len(missing) == 0 {
			return nil
		}
	}

	return fmt.Errorf("models not available after pull: %s", strings.Join(missing, ", "))
}

// warmup polls the runner until it answers or the attempts run out.
func (c *Client) warmup(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < warmupAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(warmupInterval):
			}
		}
		if lastErr = c.Ping(ctx); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("model runner not reachable at %s: %w", c.config.baseURL, lastErr)
}

// hasModel matches a wanted name against model ids and tags. The runner
// reports pulled models under normalized tags, so a prefix match on the
// requested reference is accepted.
func hasModel(models []Model, want string) bool {
	for _, m := range models {
		if m.ID == want || strings.HasPrefix(m.ID, want) {
			return true
		}
		for _, tag := range m.Tags {
			if tag == want || strings.HasPrefix(tag, want) {
				return true
			}
		}
	}
	return false
}
