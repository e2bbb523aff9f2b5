// Package cache mirrors the last known todo collection on local storage.
// It is best-effort: reads degrade to an empty collection and write failures
// are logged, never returned.
package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/tada/internal/logging"
	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/store/jsonstore"
	"github.com/idilsaglam/tada/internal/store/sqlitestore"
)

// Backend is a persistent store the cache writes through to.
type Backend interface {
	Load(ctx context.Context) ([]model.Todo, error)
	Save(ctx context.Context, todos []model.Todo) error
	Upsert(ctx context.Context, t model.Todo) error
	Remove(ctx context.Context, id int) error
}

// Kinds of backend selectable from config.
const (
	KindJSON   = "json"
	KindSQLite = "sqlite"
	KindNone   = "none"
)

type Cache struct {
	backend Backend
	logger  *log.Logger
}

// New wraps backend. A nil backend means no persistent storage is available;
// every read is empty and every write is dropped.
func New(backend Backend, logger *log.Logger) *Cache {
	return &Cache{backend: backend, logger: logging.OrDiscard(logger)}
}

// Open builds the backend named by kind under dir (or at path, when given).
// The returned close func is safe to call for every kind.
func Open(kind, dir, path string, logger *log.Logger) (*Cache, func() error, error) {
	nop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindNone:
		return New(nil, logger), nop, nil
	case "", KindJSON:
		if path == "" {
			path = filepath.Join(dir, jsonstore.DefaultFileName)
		}
		st, err := jsonstore.New(path)
		if err != nil {
			return nil, nil, err
		}
		return New(st, logger), nop, nil
	case KindSQLite:
		if path == "" {
			path = filepath.Join(dir, sqlitestore.DefaultFileName)
		}
		st, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return New(st, logger), st.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache kind %q", kind)
}

// Enabled reports whether a backend is attached.
func (c *Cache) Enabled() bool { return c != nil && c.backend != nil }

// LoadAll never fails; anything unreadable is an empty cache.
func (c *Cache) LoadAll(ctx context.Context) []model.Todo {
	if !c.Enabled() {
		return []model.Todo{}
	}
	todos, err := c.backend.Load(ctx)
	if err != nil {
		c.logger.Warn("cache load failed, using empty cache", "err", err)
		return []model.Todo{}
	}
	if todos == nil {
		return []model.Todo{}
	}
	return todos
}

func (c *Cache) SaveAll(ctx context.Context, todos []model.Todo) {
	if !c.Enabled() {
		return
	}
	if err := c.backend.Save(ctx, todos); err != nil {
		c.logger.Warn("cache save failed", "count", len(todos), "err", err)
		return
	}
	c.logger.Debug("cache saved", "count", len(todos))
}

func (c *Cache) Upsert(ctx context.Context, t model.Todo) {
	if !c.Enabled() {
		return
	}
	if err := c.backend.Upsert(ctx, t); err != nil {
		c.logger.Warn("cache upsert failed", "id", t.ID, "err", err)
	}
}

func (c *Cache) Remove(ctx context.Context, id int) {
	if !c.Enabled() {
		return
	}
	if err := c.backend.Remove(ctx, id); err != nil {
		c.logger.Warn("cache remove failed", "id", id, "err", err)
	}
}
