// Package config loads and stores the companion CLI configuration.
//
// The config file lives under os.UserConfigDir()/slowly-unhinged/config.yaml.
// A missing file yields the defaults; `companion config set` writes it out.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/shelajev/slowly-unhinged/pkg/dmr"
	"github.com/shelajev/slowly-unhinged/pkg/hub"
	"github.com/shelajev/slowly-unhinged/pkg/web"
)

const (
	appDir     = "slowly-unhinged"
	configFile = "config.yaml"
)

// Config is the companion's runtime configuration.
type Config struct {
	// HubURL is the matchmaking hub base URL.
	HubURL string `yaml:"hub_url"`

	// DMRBaseURL is where Docker Model Runner listens.
	DMRBaseURL string `yaml:"dmr_base_url"`

	// Port is the local companion API port the tunnel forwards to.
	Port int `yaml:"port"`

	// DataDir holds the persisted key-value store.
	DataDir string `yaml:"data_dir"`

	// Capture configures the microphone source.
	Capture CaptureConfig `yaml:"capture"`
}

// CaptureConfig selects the ffmpeg capture source.
type CaptureConfig struct {
	Binary      string `yaml:"binary,omitempty"`
	InputFormat string `yaml:"input_format,omitempty"`
	InputDevice string `yaml:"input_device,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		HubURL:     hub.DefaultBaseURL,
		DMRBaseURL: dmr.DefaultBaseURL,
		Port:       web.DefaultPort,
	}
}

// Path returns the config file location.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, configFile), nil
}

// Load reads the config file, falling back to defaults when it does not
// exist. Values absent from the file keep their defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDataDirDefault(filepath.Dir(path))
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDataDirDefault(filepath.Dir(path))
	return cfg, nil
}

// Save writes the config file, creating its directory if needed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to an explicit path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDataDirDefault(configDir string) {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(configDir, "data")
	}
}
