// Package config resolves tada's settings from defaults, TOML files, the
// environment and command-line flags, in that order.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/tada/internal/cache"
	"github.com/idilsaglam/tada/internal/ui"
)

const (
	DefaultAPIURL    = "https://jsonplaceholder.typicode.com"
	DefaultCache     = cache.KindJSON
	DefaultDir       = "~/.tada"
	DefaultLogFile   = "~/.tada/tada.log"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultTheme     = "neon"
	DefaultTimeout   = 10 * time.Second
	DefaultUserID    = 1
)

// Duration lets TOML files write timeouts as "5s".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Config holds every user-tunable setting.
type Config struct {
	APIURL      string   `toml:"api_url"`
	Cache       string   `toml:"cache"`      // json, sqlite or none
	CachePath   string   `toml:"cache_path"` // overrides the file under Dir
	Dir         string   `toml:"dir"`
	Timeout     Duration `toml:"timeout"`
	LogFile     string   `toml:"log_file"` // "-" is stderr, "" discards
	LogLevel    string   `toml:"log_level"`
	LogFormat   string   `toml:"log_format"`
	Theme       string   `toml:"theme"`
	MetricsAddr string   `toml:"metrics_addr"`
	UserID      int      `toml:"user_id"`

	// Group renders list output grouped by status.
	Group bool `toml:"group"`
}

func setDefaults(cfg *Config) {
	cfg.APIURL = DefaultAPIURL
	cfg.Cache = DefaultCache
	cfg.Dir = DefaultDir
	cfg.Timeout = Duration{DefaultTimeout}
	cfg.LogFile = DefaultLogFile
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.Theme = DefaultTheme
	cfg.UserID = DefaultUserID
}

func finalizeConfig(cfg *Config) error {
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.Cache = strings.ToLower(strings.TrimSpace(cfg.Cache))
	cfg.Theme = strings.ToLower(strings.TrimSpace(cfg.Theme))
	cfg.Dir = expandPath(cfg.Dir)
	cfg.CachePath = expandPath(cfg.CachePath)
	if cfg.LogFile != "-" {
		cfg.LogFile = expandPath(cfg.LogFile)
	}
	return cfg.Validate()
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url must not be empty")
	}
	switch c.Cache {
	case cache.KindJSON, cache.KindSQLite, cache.KindNone:
	default:
		return fmt.Errorf("cache: unknown kind %q (want json, sqlite or none)", c.Cache)
	}
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.LogFormat {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("log_format: unknown format %q", c.LogFormat)
	}
	if !slices.Contains(ui.Themes, c.Theme) {
		return fmt.Errorf("theme: unknown theme %q (want one of %s)", c.Theme, strings.Join(ui.Themes, ", "))
	}
	if c.UserID <= 0 {
		return fmt.Errorf("user_id must be positive, got %d", c.UserID)
	}
	return nil
}
