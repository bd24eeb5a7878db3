package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pvannier/recall/internal/atomicfile"
)

type persistedConfig struct {
	DefaultVault *string             `toml:"default_vault,omitempty"`
	Vaults       map[string]string   `toml:"vaults,omitempty"`
	Remote       *persistedRemote    `toml:"remote,omitempty"`
	Scheduler    *persistedScheduler `toml:"scheduler,omitempty"`
	Sync         *persistedSync      `toml:"sync,omitempty"`
}

type persistedRemote struct {
	Endpoint *string `toml:"endpoint,omitempty"`
	Token    *string `toml:"token,omitempty"`
}

type persistedScheduler struct {
	DesiredRetention    *float64 `toml:"desired_retention,omitempty"`
	MaximumIntervalDays *int     `toml:"maximum_interval_days,omitempty"`
	LeechThreshold      *int     `toml:"leech_threshold,omitempty"`
}

type persistedSync struct {
	Concurrency *int `toml:"concurrency,omitempty"`
}

func nonEmptyPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonZeroFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nonZeroInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

// Save writes the global config to the default config path.
func Save(cfg *Config) error {
	return SaveTo(DefaultPath(), cfg)
}

// SaveTo writes the global config to a specific path atomically.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	out := persistedConfig{
		DefaultVault: nonEmptyPtr(cfg.DefaultVault),
	}
	if len(cfg.Vaults) > 0 {
		out.Vaults = cfg.Vaults
	}
	if cfg.Remote != (RemoteConfig{}) {
		out.Remote = &persistedRemote{
			Endpoint: nonEmptyPtr(cfg.Remote.Endpoint),
			Token:    nonEmptyPtr(cfg.Remote.Token),
		}
	}
	if cfg.Scheduler != (SchedulerConfig{}) {
		out.Scheduler = &persistedScheduler{
			DesiredRetention:    nonZeroFloat(cfg.Scheduler.DesiredRetention),
			MaximumIntervalDays: nonZeroInt(cfg.Scheduler.MaximumIntervalDays),
			LeechThreshold:      nonZeroInt(cfg.Scheduler.LeechThreshold),
		}
	}
	if cfg.Sync != (SyncConfig{}) {
		out.Sync = &persistedSync{
			Concurrency: nonZeroInt(cfg.Sync.Concurrency),
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
