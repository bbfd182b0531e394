// Package todo is the reference capability package: a todo list exposed as
// six invocable functions over a relational task table.
package todo

import (
	"context"
	"errors"
	"time"
)

const PackageName = "com.grixate.todo"

const (
	FunctionAddTodo         = PackageName + "#addTodo"
	FunctionGetAllTodos     = PackageName + "#getAllTodos"
	FunctionGetPendingTodos = PackageName + "#getPendingTodos"
	FunctionCompleteTodo    = PackageName + "#completeTodo"
	FunctionDeleteTodo      = PackageName + "#deleteTodo"
	FunctionGetTodoStats    = PackageName + "#getTodoStats"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

var ErrNotFound = errors.New("todo not found")

type Item struct {
	ID        int64
	Task      string
	Status    Status
	CreatedAt time.Time
}

type Stats struct {
	Total     int
	Completed int
	Pending   int
}

func Summarize(items []Item) Stats {
	stats := Stats{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusPending:
			stats.Pending++
		}
	}
	return stats
}

// DataSource is the task table the functions operate on. FetchByID returns
// ErrNotFound for unknown ids.
type DataSource interface {
	FetchAll(ctx context.Context) ([]Item, error)
	Add(ctx context.Context, item Item) (int64, error)
	Update(ctx context.Context, item Item) error
	Delete(ctx context.Context, id int64) error
	FetchByID(ctx context.Context, id int64) (Item, error)
}
