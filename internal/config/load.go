package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	UserConfigFile    = "config.toml"
	ProjectConfigFile = "tada.toml"
)

// Load resolves configuration in priority order:
// 1. Defaults
// 2. User config file (~/.tada/config.toml)
// 3. Project config file (./tada.toml)
// 4. Environment variables (TADA_*)
// 5. Flags parsed from args into fs
//
// Non-flag arguments are left in fs.Args().
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if path := findUserConfigFile(); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", path, err)
		}
	}
	if path := findProjectConfigFile(); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := parseFlags(cfg, fs, args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}
	return nil
}

func findUserConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return existing(filepath.Join(home, ".tada", UserConfigFile))
}

func findProjectConfigFile() string {
	return existing(ProjectConfigFile)
}

func existing(path string) string {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return path
	}
	return ""
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TADA_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TADA_CACHE"); v != "" {
		cfg.Cache = v
	}
	if v := os.Getenv("TADA_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("TADA_DIR"); v != "" {
		cfg.Dir = v
	}
	if v, ok := os.LookupEnv("TADA_LOG_FILE"); ok {
		cfg.LogFile = v
	}
	if v := os.Getenv("TADA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TADA_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TADA_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("TADA_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("TADA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TADA_TIMEOUT: %w", err)
		}
		cfg.Timeout = Duration{d}
	}
	if v := os.Getenv("TADA_USER_ID"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TADA_USER_ID: %w", err)
		}
		cfg.UserID = n
	}
	return nil
}

func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	if fs == nil {
		fs = flag.NewFlagSet("todo", flag.ContinueOnError)
	}
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "Base URL of the todo API")
	fs.StringVar(&cfg.Cache, "cache", cfg.Cache, "Cache backend: json, sqlite or none")
	fs.StringVar(&cfg.CachePath, "cache-path", cfg.CachePath, "Cache file path")
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "Directory for cache files")
	fs.DurationVar(&cfg.Timeout.Duration, "timeout", cfg.Timeout.Duration, "Per-request timeout")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file (- for stderr)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text, json, logfmt")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "Color theme: neon, mono, classic")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.IntVar(&cfg.UserID, "user", cfg.UserID, "User id stamped on new todos")
	fs.BoolVar(&cfg.Group, "group", cfg.Group, "Group list output by pending/done")
	return fs.Parse(args)
}

// expandPath expands ~ and environment variables.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}
