package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/idilsaglam/tada/internal/model"
)

// JSON-backed cache storage. Single file, human-readable, portable.
// One process per file; the mutex only orders this process's writers.

const DefaultFileName = "todos.json"

const schemaURL = "tada://todos.schema.json"

const schemaSrc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "title", "completed"],
    "properties": {
      "id":        {"type": "integer"},
      "userId":    {"type": "integer"},
      "title":     {"type": "string"},
      "completed": {"type": "boolean"}
    }
  }
}`

var todosSchema = jsonschema.MustCompileString(schemaURL, schemaSrc)

type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for path; an empty path means ./todos.json.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		path = filepath.Join(wd, DefaultFileName)
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string { return s.path }

// Load returns the cached todos. A missing file is an empty cache.
func (s *Store) Load(ctx context.Context) ([]model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]model.Todo, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Todo{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if err := todosSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.path, err)
	}

	var todos []model.Todo
	if err := json.Unmarshal(b, &todos); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	return todos, nil
}

// Save replaces the file contents with todos.
func (s *Store) Save(ctx context.Context, todos []model.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(todos)
}

func (s *Store) save(todos []model.Todo) error {
	if todos == nil {
		todos = []model.Todo{}
	}
	b, err := json.MarshalIndent(todos, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Upsert replaces the todo with the same id in place, or prepends it.
func (s *Store) Upsert(ctx context.Context, t model.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.load()
	if err != nil {
		return err
	}
	if i := model.IndexOf(todos, t.ID); i >= 0 {
		todos[i] = t
	} else {
		todos = append([]model.Todo{t}, todos...)
	}
	return s.save(todos)
}

// Remove drops id from the file; a missing id is not an error.
func (s *Store) Remove(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.load()
	if err != nil {
		return err
	}
	i := model.IndexOf(todos, id)
	if i < 0 {
		return nil
	}
	return s.save(append(todos[:i], todos[i+1:]...))
}
