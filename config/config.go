// Package config holds user configuration for the callback CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tailscale/hujson"
)

// Config controls the listener identity, wait bound, and storage
// locations. Zero values are filled from Default.
type Config struct {
	// Scheme is the URL scheme this tool is registered for; callback
	// URLs embedded in outgoing requests point at it.
	Scheme string `json:"scheme"`

	// TimeoutSeconds bounds how long one invocation waits for a callback.
	TimeoutSeconds int `json:"timeout_seconds"`

	// RegistryDir overrides the pending-request directory.
	RegistryDir string `json:"registry_dir,omitempty"`

	// ManifestPath overrides the known-app manifest location.
	ManifestPath string `json:"manifest_path,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
}

// Default returns the built-in configuration with environment
// overrides applied.
//
// Environment variables:
//   - CALLBACK_SCHEME: listener URL scheme (default: callback)
//   - CALLBACK_TIMEOUT_SECONDS: callback wait bound (default: 60)
//   - CALLBACK_REGISTRY_DIR: pending-request directory
//   - CALLBACK_MANIFEST: known-app manifest path
//   - CALLBACK_LOG_LEVEL: debug, info, warn, or error (default: info)
func Default() Config {
	cfg := Config{
		Scheme:         "callback",
		TimeoutSeconds: 60,
		LogLevel:       "info",
	}
	if v := os.Getenv("CALLBACK_SCHEME"); v != "" {
		cfg.Scheme = v
	}
	if v := os.Getenv("CALLBACK_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("CALLBACK_REGISTRY_DIR"); v != "" {
		cfg.RegistryDir = v
	}
	if v := os.Getenv("CALLBACK_MANIFEST"); v != "" {
		cfg.ManifestPath = v
	}
	if v := os.Getenv("CALLBACK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// DefaultPath returns <user config dir>/callback/config.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "callback", "config.json"), nil
}

// Load reads the config file at path, layered over Default. The file
// may carry comments and trailing commas (JWCC). An empty path loads
// the default location; a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, nil
		}
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	standardized, err := hujson.Standardize(content)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Scheme == "" {
		cfg.Scheme = "callback"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 60
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// Timeout returns the configured wait bound as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
