// Package sqlite keeps the todo task table in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/grixate/fnbridge/internal/todo"
)

type TodoStore struct {
	db *sql.DB
}

func Open(path string) (*TodoStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("todo db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &TodoStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS todos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`); err != nil {
		return fmt.Errorf("create todos table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status)`); err != nil {
		return fmt.Errorf("create status index: %w", err)
	}
	return nil
}

func (s *TodoStore) Close() error {
	return s.db.Close()
}

func scanItem(row interface{ Scan(...any) error }) (todo.Item, error) {
	var (
		item    todo.Item
		status  string
		created int64
	)
	if err := row.Scan(&item.ID, &item.Task, &status, &created); err != nil {
		return todo.Item{}, err
	}
	item.Status = todo.Status(status)
	item.CreatedAt = time.Unix(created, 0).UTC()
	return item, nil
}

func (s *TodoStore) FetchAll(ctx context.Context) ([]todo.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task, status, created_at FROM todos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []todo.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *TodoStore) Add(ctx context.Context, item todo.Item) (int64, error) {
	if item.Status == "" {
		item.Status = todo.StatusPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (task, status, created_at) VALUES (?, ?, ?)`,
		item.Task, string(item.Status), item.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *TodoStore) Update(ctx context.Context, item todo.Item) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET task = ?, status = ? WHERE id = ?`,
		item.Task, string(item.Status), item.ID)
	if err != nil {
		return err
	}
	return requireRow(res, item.ID)
}

func (s *TodoStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (s *TodoStore) FetchByID(ctx context.Context, id int64) (todo.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, task, status, created_at FROM todos WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.Item{}, fmt.Errorf("%w: id %d", todo.ErrNotFound, id)
	}
	return item, err
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", todo.ErrNotFound, id)
	}
	return nil
}
