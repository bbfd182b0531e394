package todo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grixate/fnbridge/internal/appdata"
	"github.com/grixate/fnbridge/internal/invoker"
)

type handler func(ctx context.Context, params appdata.Data) (appdata.Data, error)

// Runtime executes this package's functions against a DataSource. Enabled
// state starts from each function's default and can be overridden per
// owner.
type Runtime struct {
	source   DataSource
	handlers map[string]handler
	defaults map[string]bool
	log      *log.Logger
	now      func() time.Time

	mu        sync.RWMutex
	overrides map[string]bool
}

func NewRuntime(source DataSource, logger *log.Logger) *Runtime {
	if logger == nil {
		logger = log.Default()
	}
	r := &Runtime{
		source:    source,
		defaults:  map[string]bool{},
		log:       logger,
		now:       time.Now,
		overrides: map[string]bool{},
	}
	r.handlers = map[string]handler{
		FunctionAddTodo:         r.addTodo,
		FunctionGetAllTodos:     r.getAllTodos,
		FunctionGetPendingTodos: r.getPendingTodos,
		FunctionCompleteTodo:    r.completeTodo,
		FunctionDeleteTodo:      r.deleteTodo,
		FunctionGetTodoStats:    r.getTodoStats,
	}
	for _, fn := range Metadata().Functions {
		r.defaults[fn.ID] = fn.EnabledByDefault
	}
	return r
}

func overrideKey(owner, functionID string) string {
	return owner + "\x00" + functionID
}

func (r *Runtime) IsEnabled(_ context.Context, owner, functionID string) (bool, error) {
	enabled, known := r.defaults[functionID]
	if !known {
		return false, fmt.Errorf("unknown function %s", functionID)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if override, ok := r.overrides[overrideKey(owner, functionID)]; ok {
		return override, nil
	}
	return enabled, nil
}

func (r *Runtime) SetEnabled(owner, functionID string, enabled bool) error {
	if _, known := r.defaults[functionID]; !known {
		return fmt.Errorf("unknown function %s", functionID)
	}
	r.mu.Lock()
	r.overrides[overrideKey(owner, functionID)] = enabled
	r.mu.Unlock()
	return nil
}

func (r *Runtime) Execute(ctx context.Context, req invoker.Request) (appdata.Data, error) {
	h, ok := r.handlers[req.FunctionID]
	if !ok {
		return appdata.Data{}, fmt.Errorf("unknown function %s", req.FunctionID)
	}
	r.log.Printf("event=todo_function trace_id=%s function=%s", req.TraceID, req.FunctionID)
	return h(ctx, req.Parameters)
}

func itemData(item Item) appdata.Data {
	return appdata.NewBuilder().
		SetString("id", strconv.FormatInt(item.ID, 10)).
		SetString("task", item.Task).
		SetString("status", string(item.Status)).
		Build()
}

func itemList(items []Item) appdata.Data {
	out := make([]appdata.Data, 0, len(items))
	for _, item := range items {
		out = append(out, itemData(item))
	}
	return appdata.Result(func(b *appdata.Builder, key string) { b.SetDataList(key, out) })
}

func mutationResult(success bool, format string, args ...any) appdata.Data {
	message := fmt.Sprintf(format, args...)
	return appdata.Result(func(b *appdata.Builder, key string) {
		b.SetData(key, appdata.NewBuilder().SetBool("success", success).SetString("message", message).Build())
	})
}

func (r *Runtime) addTodo(ctx context.Context, params appdata.Data) (appdata.Data, error) {
	task, _ := params.String("task")
	task = strings.TrimSpace(task)
	if task == "" {
		return appdata.Data{}, errors.New("task description must not be blank")
	}
	_, err := r.source.Add(ctx, Item{Task: task, Status: StatusPending, CreatedAt: r.now().UTC()})
	if err != nil {
		r.log.Printf("event=todo_add_failed err=%v", err)
		return mutationResult(false, "Failed to add task: %v", err), nil
	}
	return mutationResult(true, "Task '%s' added successfully.", task), nil
}

func (r *Runtime) getAllTodos(ctx context.Context, _ appdata.Data) (appdata.Data, error) {
	items, err := r.source.FetchAll(ctx)
	if err != nil {
		return appdata.Data{}, fmt.Errorf("fetch todos: %w", err)
	}
	return itemList(items), nil
}

func (r *Runtime) getPendingTodos(ctx context.Context, _ appdata.Data) (appdata.Data, error) {
	items, err := r.source.FetchAll(ctx)
	if err != nil {
		return appdata.Data{}, fmt.Errorf("fetch todos: %w", err)
	}
	pending := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Status == StatusPending {
			pending = append(pending, item)
		}
	}
	return itemList(pending), nil
}

func parseTodoID(params appdata.Data) (string, int64, error) {
	raw, _ := params.String("todoId")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return raw, 0, fmt.Errorf("invalid todoId %q: must be a numeric string like \"42\"", raw)
	}
	return raw, id, nil
}

func (r *Runtime) lookup(ctx context.Context, raw string, id int64) (Item, appdata.Data, error) {
	item, err := r.source.FetchByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Item{}, mutationResult(false, "No todo found with id '%s'.", raw), nil
	}
	if err != nil {
		return Item{}, appdata.Data{}, fmt.Errorf("fetch todo %d: %w", id, err)
	}
	return item, appdata.Data{}, nil
}

func (r *Runtime) completeTodo(ctx context.Context, params appdata.Data) (appdata.Data, error) {
	raw, id, err := parseTodoID(params)
	if err != nil {
		return appdata.Data{}, err
	}
	item, missing, err := r.lookup(ctx, raw, id)
	if err != nil || missing.Len() > 0 {
		return missing, err
	}
	if item.Status == StatusCompleted {
		return mutationResult(false, "Todo '%s' is already completed.", item.Task), nil
	}
	item.Status = StatusCompleted
	if err := r.source.Update(ctx, item); err != nil {
		r.log.Printf("event=todo_complete_failed id=%d err=%v", id, err)
		return mutationResult(false, "Failed to update todo: %v", err), nil
	}
	return mutationResult(true, "Todo '%s' marked as completed.", item.Task), nil
}

func (r *Runtime) deleteTodo(ctx context.Context, params appdata.Data) (appdata.Data, error) {
	raw, id, err := parseTodoID(params)
	if err != nil {
		return appdata.Data{}, err
	}
	item, missing, err := r.lookup(ctx, raw, id)
	if err != nil || missing.Len() > 0 {
		return missing, err
	}
	if err := r.source.Delete(ctx, id); err != nil {
		r.log.Printf("event=todo_delete_failed id=%d err=%v", id, err)
		return mutationResult(false, "Failed to delete todo: %v", err), nil
	}
	return mutationResult(true, "Todo '%s' deleted.", item.Task), nil
}

func (r *Runtime) getTodoStats(ctx context.Context, _ appdata.Data) (appdata.Data, error) {
	items, err := r.source.FetchAll(ctx)
	if err != nil {
		return appdata.Data{}, fmt.Errorf("fetch todos: %w", err)
	}
	stats := Summarize(items)
	return appdata.Result(func(b *appdata.Builder, key string) {
		b.SetData(key, appdata.NewBuilder().
			SetInt("total", int32(stats.Total)).
			SetInt("completed", int32(stats.Completed)).
			SetInt("pending", int32(stats.Pending)).
			Build())
	}), nil
}
