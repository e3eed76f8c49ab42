// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the docchat TUI.
//
// Configuration sources, in order of precedence:
//   - DOCCHAT_* environment variables
//   - ~/.docchat/config.toml
//   - Built-in defaults
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/morganforge/docchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete docchat configuration.
type Config struct {
	// Backend holds the backend service settings.
	Backend BackendConfig `toml:"backend"`

	// Storage holds local persistence settings.
	Storage StorageConfig `toml:"storage"`

	// UI holds presentation settings.
	UI UIConfig `toml:"ui"`
}

// BackendConfig contains backend service settings.
type BackendConfig struct {
	// BaseURL is the backend base URL.
	BaseURL string `toml:"base_url"`

	// Model is the completion model requested on every chat turn.
	Model string `toml:"model"`

	// PollIntervalSecs is the delay between indexing checks after an upload.
	PollIntervalSecs int `toml:"poll_interval_secs"`

	// PollAttempts bounds the indexing checks per submission.
	PollAttempts int `toml:"poll_attempts"`
}

// StorageConfig contains local persistence settings.
type StorageConfig struct {
	// StateDir is the directory holding conversation state.
	// Empty means ~/.docchat/state.
	StateDir string `toml:"state_dir"`

	// WatchExternal enables reloading when another process writes the
	// state directory.
	WatchExternal bool `toml:"watch_external"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// GlamourStyle is the markdown rendering style for assistant messages:
	// "dark", "light", or "auto".
	GlamourStyle string `toml:"glamour_style"`

	// ShowTimestamps toggles per-message clock times in the transcript.
	ShowTimestamps bool `toml:"show_timestamps"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8000",
			Model:            "openai/gpt-4o",
			PollIntervalSecs: 1,
			PollAttempts:     10,
		},
		Storage: StorageConfig{
			StateDir:      "",
			WatchExternal: true,
		},
		UI: UIConfig{
			GlamourStyle:   "auto",
			ShowTimestamps: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the docchat configuration directory (~/.docchat).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".docchat"), nil
}

// Path returns the configuration file path (~/.docchat/config.toml).
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file, applies environment overrides, and
// validates the result. A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath reads the configuration from a specific file, applies
// environment overrides, and validates the result.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies DOCCHAT_* environment variables:
//   - DOCCHAT_BACKEND_URL: overrides backend.base_url
//   - DOCCHAT_MODEL: overrides backend.model
//   - DOCCHAT_STATE_DIR: overrides storage.state_dir
//   - DOCCHAT_POLL_ATTEMPTS: overrides backend.poll_attempts
func (c *Config) ApplyEnvOverrides() {
	if baseURL := os.Getenv("DOCCHAT_BACKEND_URL"); baseURL != "" {
		c.Backend.BaseURL = baseURL
	}
	if model := os.Getenv("DOCCHAT_MODEL"); model != "" {
		c.Backend.Model = model
	}
	if stateDir := os.Getenv("DOCCHAT_STATE_DIR"); stateDir != "" {
		c.Storage.StateDir = stateDir
	}
	if attempts := os.Getenv("DOCCHAT_POLL_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil && n > 0 {
			c.Backend.PollAttempts = n
		}
	}
}

// SetDefaults fills zero values with defaults. Needed after decoding a
// partial config file.
func (c *Config) SetDefaults() {
	def := Default()
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Backend.Model == "" {
		c.Backend.Model = def.Backend.Model
	}
	if c.Backend.PollIntervalSecs <= 0 {
		c.Backend.PollIntervalSecs = def.Backend.PollIntervalSecs
	}
	if c.Backend.PollAttempts <= 0 {
		c.Backend.PollAttempts = def.Backend.PollAttempts
	}
	if c.UI.GlamourStyle == "" {
		c.UI.GlamourStyle = def.UI.GlamourStyle
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.base_url %q is not a valid URL", c.Backend.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend.base_url scheme %q is not http or https", parsed.Scheme)
	}

	switch c.UI.GlamourStyle {
	case "auto", "dark", "light":
	default:
		return fmt.Errorf("ui.glamour_style %q is not auto, dark, or light", c.UI.GlamourStyle)
	}
	return nil
}

// Save writes the configuration to ~/.docchat/config.toml atomically.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// GLOBAL ACCESS
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// A load failure falls back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}
