package jsonstore

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/idilsaglam/tada/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", DefaultFileName))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := newStore(t)
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Load: got %v, want empty non-nil slice", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	todos := []model.Todo{
		{ID: 3, UserID: 1, Title: "c"},
		{ID: 1, UserID: 1, Title: "a", Completed: true},
	}
	if err := s.Save(ctx, todos); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, todos) {
		t.Errorf("round trip: got %+v, want %+v", got, todos)
	}

	before, _ := os.ReadFile(s.Path())
	if err := s.Save(ctx, got); err != nil {
		t.Fatalf("re-Save: %v", err)
	}
	after, _ := os.ReadFile(s.Path())
	if string(before) != string(after) {
		t.Error("Save(Load()) changed file contents")
	}
}

func TestUpsertAndRemove(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, []model.Todo{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}})

	if err := s.Upsert(ctx, model.Todo{ID: 2, Title: "b2", Completed: true}); err != nil {
		t.Fatalf("Upsert existing: %v", err)
	}
	if err := s.Upsert(ctx, model.Todo{ID: 9, Title: "new"}); err != nil {
		t.Fatalf("Upsert new: %v", err)
	}
	if err := s.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, 404); err != nil {
		t.Errorf("Remove missing: got %v, want nil", err)
	}

	got, _ := s.Load(ctx)
	want := []model.Todo{{ID: 9, Title: "new"}, {ID: 2, Title: "b2", Completed: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after upsert/remove: got %+v, want %+v", got, want)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{nope"},
		{"object not array", `{"id": 1}`},
		{"missing title", `[{"id": 1, "completed": false}]`},
		{"string id", `[{"id": "1", "title": "a", "completed": false}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			_ = os.MkdirAll(filepath.Dir(s.Path()), 0o700)
			if err := os.WriteFile(s.Path(), []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Load(context.Background()); err == nil {
				t.Errorf("Load(%s): expected error", tt.name)
			}
		})
	}
}

func TestNewDefaultsToWorkingDir(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !strings.HasSuffix(s.Path(), DefaultFileName) {
		t.Errorf("Path: got %q", s.Path())
	}
}
