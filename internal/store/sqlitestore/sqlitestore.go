// Package sqlitestore keeps the cached collection in an embedded SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/idilsaglam/tada/internal/model"
)

const DefaultFileName = "todos.sqlite3"

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id        INTEGER PRIMARY KEY,
	user_id   INTEGER NOT NULL DEFAULT 0,
	title     TEXT    NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT 0,
	position  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS todos_position ON todos(position);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" works for
// tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load(ctx context.Context) ([]model.Todo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, completed FROM todos ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	todos := []model.Todo{}
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Completed); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return todos, nil
}

// Save replaces the table in one transaction, keeping slice order.
func (s *Store) Save(ctx context.Context, todos []model.Todo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM todos`); err != nil {
		return fmt.Errorf("clear todos: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO todos (id, user_id, title, completed, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range todos {
		if _, err := stmt.ExecContext(ctx, t.ID, t.UserID, t.Title, t.Completed, i); err != nil {
			return fmt.Errorf("insert todo %d: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Upsert updates an existing row in place or inserts a new one at the head.
func (s *Store) Upsert(ctx context.Context, t model.Todo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (id, user_id, title, completed, position)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MIN(position), 0) - 1 FROM todos))
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			completed = excluded.completed`,
		t.ID, t.UserID, t.Title, t.Completed)
	if err != nil {
		return fmt.Errorf("upsert todo %d: %w", t.ID, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	return nil
}
