// Package config loads the launcher configuration file. Missing file or
// missing keys fall back to defaults; only a malformed file is an error.
package config

import (
	"os"
	"time"

	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/pelletier/go-toml/v2"
)

// Config holds the tunables of the backend engine.
type Config struct {
	// DownloadConcurrency bounds simultaneous content transfers.
	DownloadConcurrency int64 `toml:"download_concurrency"`

	// WorldCap limits how many world summaries a snapshot keeps.
	WorldCap int `toml:"world_cap"`

	// DebounceMillis is the quiescence window before a batch of
	// filesystem events is delivered.
	DebounceMillis int `toml:"debounce_ms"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DownloadConcurrency: 8,
		WorldCap:            64,
		DebounceMillis:      200,
	}
}

// Load reads the config file at path, overlaying it onto the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, errors.ErrConfigLoad, "reading %s", path)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), errors.Wrapf(err, errors.ErrConfigParse, "parsing %s", path)
	}

	cfg.normalize()
	return cfg, nil
}

// DebounceWindow returns the debounce duration.
func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

func (c *Config) normalize() {
	def := Default()
	if c.DownloadConcurrency <= 0 {
		c.DownloadConcurrency = def.DownloadConcurrency
	}
	if c.WorldCap <= 0 {
		c.WorldCap = def.WorldCap
	}
	if c.DebounceMillis <= 0 {
		c.DebounceMillis = def.DebounceMillis
	}
}
