package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tada.log")
	logger, closeFn, err := New(Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hello", "id", 7)
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "hello") || !strings.Contains(string(b), "id=7") {
		t.Errorf("log file: got %q", string(b))
	}
}

func TestNewJSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tada.log")
	logger, closeFn, err := New(Options{Format: "json", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("saved", "count", 3)
	_ = closeFn()

	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), `"msg":"saved"`) {
		t.Errorf("json log: got %q", string(b))
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should pass through a non-nil logger")
	}
}
