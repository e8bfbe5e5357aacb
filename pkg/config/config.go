// Package config loads lifebadge configuration from embedded defaults, the global config dir
// and an optional local .lifebadge directory.
package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/umputun/lifebadge/pkg/status"
)

//go:embed defaults
var defaultsFS embed.FS

// localDirName is the per-project config directory looked up in the working directory.
const localDirName = ".lifebadge"

// DefaultsFS returns the embedded defaults filesystem.
func DefaultsFS() embed.FS {
	return defaultsFS
}

// Config is the merged configuration.
type Config struct {
	Values
	Colors ColorConfig

	configDir string // global config dir, defaults installed here
	localDir  string // .lifebadge in cwd if present
}

// Load loads configuration. empty configDir means DefaultConfigDir().
// default config file is installed into configDir on first run.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	if err := newDefaultsInstaller(defaultsFS).Install(configDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	localDir := ""
	if st, err := os.Stat(localDirName); err == nil && st.IsDir() {
		localDir = localDirName
	}

	return loadFrom(configDir, localDir)
}

// loadFrom loads configuration from explicit global and local dirs, without installing defaults.
func loadFrom(configDir, localDir string) (*Config, error) {
	globalPath := filepath.Join(configDir, "config")
	localPath := ""
	if localDir != "" {
		localPath = filepath.Join(localDir, "config")
	}

	values, err := newValuesLoader(defaultsFS).Load(localPath, globalPath)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}

	colors, err := newColorLoader(defaultsFS).Load(localPath, globalPath)
	if err != nil {
		return nil, fmt.Errorf("load colors: %w", err)
	}

	cfg := &Config{Values: values, Colors: colors, configDir: configDir, localDir: localDir}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DefaultConfigDir returns ~/.config/lifebadge, falling back to ./.config/lifebadge.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "lifebadge")
	}
	return filepath.Join(home, ".config", "lifebadge")
}

// ConfigDir returns the global config directory in use.
func (c *Config) ConfigDir() string { return c.configDir }

// LocalDir returns the local config directory, empty if none.
func (c *Config) LocalDir() string { return c.localDir }

// Validate checks merged values are usable.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(&c.Values,
		validation.Field(&c.Values.Host, is.Host),
		validation.Field(&c.Values.Port, validation.Max(65535)),
		validation.Field(&c.Values.DashboardPort, validation.Max(65535)),
		validation.Field(&c.Values.NotifySMTPPort, validation.Max(65535)),
	)
	if err != nil {
		return err //nolint:wrapcheck // caller wraps
	}
	if c.Port == 0 {
		return errors.New("port: must be set")
	}
	return nil
}

// Timeout returns the per-attempt fetch timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// WatchInterval returns the polling interval for watch mode.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalMs) * time.Millisecond
}

// Resolver returns a status resolver with the configured style overrides.
func (c *Config) Resolver() status.Resolver {
	return status.NewResolver(map[status.Kind]status.Style{
		status.KindStarting:    c.StyleStarting,
		status.KindStarted:     c.StyleStarted,
		status.KindStopped:     c.StyleStopped,
		status.KindFailed:      c.StyleFailed,
		status.KindUnknown:     c.StyleUnknown,
		status.KindUnreachable: c.StyleUnreachable,
	})
}
