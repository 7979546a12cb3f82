// Package settings persists the companion's runtime settings: the dial wheel
// state, the model ids used by the capture pipeline, and the nano banana API
// key. Values live in the kv store; load failures fall back to defaults
// silently and save failures are logged only.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/shelajev/slowly-unhinged/pkg/kv"
)

// Default model ids pulled through Docker Model Runner on first use.
const (
	DefaultTranscriptionModel = "hf.co/ggml-org/ultravox-v0_5-llama-3_1-8b-gguf"
	DefaultPromptModel        = "hf.co/unsloth/gemma-3n-e2b-it-gguf:q8_k_xl"
)

// EnvAPIKey is the environment variable consulted for the nano banana key.
const EnvAPIKey = "NANOBANANA_API_KEY"

// ErrNoAPIKey is returned when no nano banana API key is configured anywhere.
var ErrNoAPIKey = errors.New("settings: nano banana API key not configured")

// Store keys.
const (
	keyWheels             = "settings:wheels"
	keyTranscriptionModel = "settings:model:transcription"
	keyPromptModel        = "settings:model:prompt"
	keyAPIKey             = "settings:nanobanana:key"
)

// WheelState is the persisted dial state: one position per wheel plus the
// index of the wheel currently under control.
type WheelState struct {
	Positions   []int `msgpack:"positions"`
	ActiveIndex int   `msgpack:"active_index"`
}

// Settings reads and writes companion settings backed by a kv store.
type Settings struct {
	store kv.Store
	log   *slog.Logger

	mu            sync.Mutex
	runtimeSecret string
}

// New creates a Settings facade over the given store.
func New(store kv.Store, log *slog.Logger) *Settings {
	if log == nil {
		log = slog.Default()
	}
	return &Settings{store: store, log: log}
}

// LoadWheels returns the stored wheel state, or nil if none is stored or the
// stored value cannot be decoded.
func (s *Settings) LoadWheels(ctx context.Context) *WheelState {
	raw, err := s.store.Get(ctx, keyWheels)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn("settings: wheel state load failed, using defaults", "err", err)
		}
		return nil
	}
	var ws WheelState
	if err := msgpack.Unmarshal(raw, &ws); err != nil {
		s.log.Warn("settings: wheel state corrupt, using defaults", "err", err)
		return nil
	}
	return &ws
}

// SaveWheels persists the wheel state. Failures are logged, not returned:
// losing a debounced save must never disturb the input loop.
func (s *Settings) SaveWheels(ctx context.Context, ws WheelState) {
	raw, err := msgpack.Marshal(ws)
	if err != nil {
		s.log.Warn("settings: wheel state encode failed", "err", err)
		return
	}
	if err := s.store.Set(ctx, keyWheels, raw); err != nil {
		s.log.Warn("settings: wheel state save failed", "err", err)
	}
}

// TranscriptionModel returns the configured transcription model id.
func (s *Settings) TranscriptionModel(ctx context.Context) string {
	return s.stringOr(ctx, keyTranscriptionModel, DefaultTranscriptionModel)
}

// PromptModel returns the configured background prompt model id.
func (s *Settings) PromptModel(ctx context.Context) string {
	return s.stringOr(ctx, keyPromptModel, DefaultPromptModel)
}

// SetTranscriptionModel stores the transcription model id.
func (s *Settings) SetTranscriptionModel(ctx context.Context, id string) error {
	return s.store.Set(ctx, keyTranscriptionModel, []byte(id))
}

// SetPromptModel stores the background prompt model id.
func (s *Settings) SetPromptModel(ctx context.Context, id string) error {
	return s.store.Set(ctx, keyPromptModel, []byte(id))
}

// SetAPIKey stores the nano banana API key.
func (s *Settings) SetAPIKey(ctx context.Context, key string) error {
	return s.store.Set(ctx, keyAPIKey, []byte(strings.TrimSpace(key)))
}

// SetRuntimeSecret records an API key pushed by the hub for this run only.
// It is never persisted.
func (s *Settings) SetRuntimeSecret(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtimeSecret = strings.TrimSpace(secret)
}

// HasAPIKey reports whether any nano banana key source would resolve.
func (s *Settings) HasAPIKey(ctx context.Context) bool {
	_, err := s.APIKey(ctx)
	return err == nil
}

// APIKey resolves the nano banana API key. Lookup order: stored setting,
// NANOBANANA_API_KEY environment variable, then a hub-pushed runtime secret.
func (s *Settings) APIKey(ctx context.Context) (string, error) {
	if raw, err := s.store.Get(ctx, keyAPIKey); err == nil {
		if v := strings.TrimSpace(string(raw)); v != "" {
			return v, nil
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return v, nil
	}
	s.mu.Lock()
	secret := s.runtimeSecret
	s.mu.Unlock()
	if secret != "" {
		return secret, nil
	}
	return "", ErrNoAPIKey
}

func (s *Settings) stringOr(ctx context.Context, key, def string) string {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn("settings: load failed, using default", "key", key, "err", err)
		}
		return def
	}
	if v := strings.TrimSpace(string(raw)); v != "" {
		return v
	}
	return def
}
