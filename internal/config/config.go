// Package config loads the daemon's TOML configuration. A missing file
// means all defaults; partial files are filled in with defaults per field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the TOML configuration file inside the state dir.
const FileName = "config.toml"

// dirName is the daemon state directory under the user's home.
const dirName = ".qs-daemon"

// Config is the daemon configuration, decoded from TOML.
type Config struct {
	Daemon DaemonConfig `toml:"daemon"`
	Index  IndexConfig  `toml:"index"`
	Logs   LogConfig    `toml:"logs"`

	// Path is where this config was loaded from; empty when defaults were
	// used because no file existed.
	Path string `toml:"-"`
}

// DaemonConfig covers the socket addresses and the refresh schedule.
type DaemonConfig struct {
	// RequestSocket is the well-known address clients connect to.
	RequestSocket string `toml:"request_socket"`

	// ResponseSocket is the launcher-side endpoint the daemon connects out
	// to for out-of-band response delivery.
	ResponseSocket string `toml:"response_socket"`

	// RefreshIntervalSecs is the period of the background rebuild.
	RefreshIntervalSecs int `toml:"refresh_interval_secs"`
}

// IndexConfig covers what gets indexed and the default result cap.
type IndexConfig struct {
	// Root overrides the directory handed to the file lister.
	// Empty means the user's home directory.
	Root string `toml:"root"`

	// DefaultLimit caps search results when a request carries no limit.
	DefaultLimit int `toml:"default_limit"`
}

// LogConfig mirrors logging.Config for the TOML surface.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Daemon: DaemonConfig{
			RequestSocket:       "/tmp/quickfile-daemon.sock",
			ResponseSocket:      "/tmp/quickfile-response.sock",
			RefreshIntervalSecs: 300,
		},
		Index: IndexConfig{
			DefaultLimit: 100,
		},
		Logs: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Dir returns the daemon state directory (~/.qs-daemon), creating it if
// needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the default config file location, or empty when the
// home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, dirName, FileName)
}

// Load reads the config at path. A missing file is not an error: the
// defaults are returned with Path left empty so callers know nothing is on
// disk to watch.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.Path = path
	return cfg, nil
}

// applyDefaults fills zero-valued fields so a partial file behaves like the
// defaults with overrides.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Daemon.RequestSocket == "" {
		c.Daemon.RequestSocket = def.Daemon.RequestSocket
	}
	if c.Daemon.ResponseSocket == "" {
		c.Daemon.ResponseSocket = def.Daemon.ResponseSocket
	}
	if c.Daemon.RefreshIntervalSecs <= 0 {
		c.Daemon.RefreshIntervalSecs = def.Daemon.RefreshIntervalSecs
	}
	if c.Index.DefaultLimit <= 0 {
		c.Index.DefaultLimit = def.Index.DefaultLimit
	}
	if c.Logs.Level == "" {
		c.Logs.Level = def.Logs.Level
	}
	if c.Logs.Format == "" {
		c.Logs.Format = def.Logs.Format
	}
}

// RefreshInterval returns the rebuild period as a duration.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Daemon.RefreshIntervalSecs) * time.Second
}
