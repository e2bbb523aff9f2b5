// Package logging builds the charmbracelet/log logger every package receives.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Options mirrors the logging part of the config.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // "" discards, "-" is stderr
}

// New returns a logger and a close func for its destination. The TUI owns the
// terminal, so file output is the default in practice.
func New(opts Options) (*log.Logger, func() error, error) {
	level := log.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		lv, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		level = lv
	}

	formatter := log.TextFormatter
	switch strings.ToLower(opts.Format) {
	case "", "text":
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, nil, fmt.Errorf("log format: unknown %q", opts.Format)
	}

	var (
		w       io.Writer = io.Discard
		closeFn           = func() error { return nil }
	)
	switch opts.File {
	case "":
	case "-":
		w = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return nil, nil, fmt.Errorf("mkdir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closeFn = f, f.Close
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          "tada",
	})
	return logger, closeFn, nil
}

// Discard is the logger used when nothing was injected.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
