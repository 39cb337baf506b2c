// Package config loads the service configuration from a YAML file,
// falling back to defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "pinmark"

// Duration accepts "15s"-style strings in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the whole service configuration.
type Config struct {
	Addr     string `yaml:"addr"`      // listen address, e.g. ":33875"
	DBPath   string `yaml:"db_path"`   // sqlite database file
	LogLevel string `yaml:"log_level"` // debug | info | warn | error

	Fetch FetchConfig `yaml:"fetch"`
}

// FetchConfig tunes the metadata fetcher.
type FetchConfig struct {
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
}

// Default returns the built-in configuration. The database lives in
// the XDG data directory.
func Default() *Config {
	return &Config{
		Addr:     ":33875",
		DBPath:   filepath.Join(dataDir(), "bookmarks.db"),
		LogLevel: "info",
		Fetch: FetchConfig{
			Timeout: Duration(15 * time.Second),
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return cfg, nil
}

// dataDir resolves $XDG_DATA_HOME/pinmark, defaulting to
// ~/.local/share/pinmark.
func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return appName
	}

	return filepath.Join(home, ".local", "share", appName)
}
