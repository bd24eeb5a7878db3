// Package config handles global recall configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global recall configuration.
type Config struct {
	// DefaultVault is the name of the default vault (from Vaults map).
	DefaultVault string `toml:"default_vault"`

	// Vaults is a map of vault names to paths.
	Vaults map[string]string `toml:"vaults"`

	// Remote configures the remote card store. Endpoint empty means
	// fully offline operation.
	Remote RemoteConfig `toml:"remote"`

	// Scheduler tunes the review scheduler.
	Scheduler SchedulerConfig `toml:"scheduler"`

	// Sync tunes bulk synchronization.
	Sync SyncConfig `toml:"sync"`
}

// RemoteConfig configures the remote card store client.
type RemoteConfig struct {
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
}

// SchedulerConfig tunes the review scheduler. Zero values mean
// defaults (retention 0.9, maximum interval 36500 days, leech
// threshold 5).
type SchedulerConfig struct {
	DesiredRetention    float64 `toml:"desired_retention"`
	MaximumIntervalDays int     `toml:"maximum_interval_days"`
	LeechThreshold      int     `toml:"leech_threshold"`
}

// SyncConfig tunes bulk synchronization.
type SyncConfig struct {
	// Concurrency bounds simultaneous note pushes. 0 means default.
	Concurrency int `toml:"concurrency"`
}

// GetVaultPath returns the path for a named vault.
// If name is empty, returns the default vault path.
func (c *Config) GetVaultPath(name string) (string, error) {
	if name == "" {
		name = c.DefaultVault
	}
	if name == "" {
		return "", fmt.Errorf("no default vault configured")
	}
	if c.Vaults != nil {
		if path, ok := c.Vaults[name]; ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("vault '%s' not found in config", name)
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath := DefaultPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &Config{}, nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &config, nil
}

// DefaultPath returns the default config file path.
// Checks ~/.config/recall/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "recall", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "recall", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}
