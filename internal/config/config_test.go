package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points HOME and the working directory at fresh temp dirs and clears
// TADA_* variables.
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home, work = t.TempDir(), t.TempDir()
	t.Setenv("HOME", home)
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "TADA_") {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
	t.Chdir(work)
	return home, work
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestDefaults(t *testing.T) {
	home, _ := isolate(t)
	cfg, err := Load(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL: got %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.Cache != "json" {
		t.Errorf("Cache: got %q, want json", cfg.Cache)
	}
	if cfg.Timeout.Duration != DefaultTimeout {
		t.Errorf("Timeout: got %s", cfg.Timeout)
	}
	if want := filepath.Join(home, ".tada"); cfg.Dir != want {
		t.Errorf("Dir: got %q, want %q", cfg.Dir, want)
	}
	if want := filepath.Join(home, ".tada", "tada.log"); cfg.LogFile != want {
		t.Errorf("LogFile: got %q, want %q", cfg.LogFile, want)
	}
	if cfg.UserID != 1 {
		t.Errorf("UserID: got %d, want 1", cfg.UserID)
	}
}

func TestPriorityOrder(t *testing.T) {
	home, work := isolate(t)

	userDir := filepath.Join(home, ".tada")
	if err := os.MkdirAll(userDir, 0o700); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(userDir, UserConfigFile), `
api_url = "http://user.example/"
theme = "mono"
timeout = "3s"
cache = "sqlite"
`)
	writeFile(t, filepath.Join(work, ProjectConfigFile), `
theme = "classic"
log_level = "debug"
`)
	t.Setenv("TADA_LOG_LEVEL", "warn")
	t.Setenv("TADA_CACHE", "none")

	fs := newFlagSet()
	cfg, err := Load(fs, []string{"-cache", "json", "ls"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct{ name, got, want string }{
		{"api_url from user file, trailing slash trimmed", cfg.APIURL, "http://user.example"},
		{"theme from project file", cfg.Theme, "classic"},
		{"log_level from env", cfg.LogLevel, "warn"},
		{"cache from flag", cfg.Cache, "json"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.Timeout.Duration != 3*time.Second {
		t.Errorf("Timeout: got %s, want 3s", cfg.Timeout)
	}
	if args := fs.Args(); len(args) != 1 || args[0] != "ls" {
		t.Errorf("remaining args: got %v", args)
	}
}

func TestLogFileDashStaysStderr(t *testing.T) {
	isolate(t)
	t.Setenv("TADA_LOG_FILE", "-")
	cfg, err := Load(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogFile != "-" {
		t.Errorf("LogFile: got %q, want -", cfg.LogFile)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		want string
	}{
		{"bad cache", nil, []string{"-cache", "redis"}, "unknown kind"},
		{"zero timeout", nil, []string{"-timeout", "0s"}, "timeout must be positive"},
		{"bad log level", map[string]string{"TADA_LOG_LEVEL": "loud"}, nil, "log_level"},
		{"bad env timeout", map[string]string{"TADA_TIMEOUT": "soon"}, nil, "TADA_TIMEOUT"},
		{"bad user", nil, []string{"-user", "0"}, "user_id"},
		{"bad theme", map[string]string{"TADA_THEME": "plaid"}, nil, "unknown theme"},
		{"empty api", nil, []string{"-api", " "}, "api_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(newFlagSet(), tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load: got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestUnknownFileKeyIsAnError(t *testing.T) {
	_, work := isolate(t)
	writeFile(t, filepath.Join(work, ProjectConfigFile), `colour = "red"`)
	if _, err := Load(newFlagSet(), nil); err == nil || !strings.Contains(err.Error(), "colour") {
		t.Errorf("Load: got %v, want unknown key error", err)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}
