package todo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/grixate/fnbridge/internal/catalog"
	"github.com/grixate/fnbridge/internal/invoker"
	"github.com/grixate/fnbridge/internal/telemetry"
)

type memorySource struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Item
}

func newMemorySource(items ...Item) *memorySource {
	src := &memorySource{items: map[int64]Item{}}
	for _, item := range items {
		src.items[item.ID] = item
		if item.ID > src.nextID {
			src.nextID = item.ID
		}
	}
	return src
}

func (m *memorySource) FetchAll(context.Context) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memorySource) Add(_ context.Context, item Item) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	item.ID = m.nextID
	m.items[item.ID] = item
	return item.ID, nil
}

func (m *memorySource) Update(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return ErrNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *memorySource) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memorySource) FetchByID(_ context.Context, id int64) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

type harness struct {
	catalog *catalog.Catalog
	invoker *invoker.Invoker
	runtime *Runtime
	source  *memorySource
}

func newHarness(t *testing.T, items ...Item) *harness {
	t.Helper()
	logger := log.New(&bytes.Buffer{}, "", 0)
	metrics := &telemetry.Metrics{}
	cat := catalog.New(metrics, logger)
	snap := cat.Replace(Metadata().Functions)
	if len(snap.Dropped()) != 0 {
		t.Fatalf("reference package must map cleanly: %v", snap.Dropped())
	}
	src := newMemorySource(items...)
	rt := NewRuntime(src, logger)
	return &harness{catalog: cat, invoker: invoker.New(rt, metrics, nil, logger), runtime: rt, source: src}
}

func (h *harness) call(t *testing.T, name, args string) invoker.Result {
	t.Helper()
	entry, ok := h.catalog.Snapshot().Find(name)
	if !ok {
		t.Fatalf("function %s not in catalog", name)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(args), &raw); err != nil {
		t.Fatal(err)
	}
	return h.invoker.Invoke(context.Background(), "tester", entry.Metadata, entry.Declaration, raw)
}

func TestMetadataMapsToSortedDeclarations(t *testing.T) {
	h := newHarness(t)
	var names []string
	for _, decl := range h.catalog.Declarations() {
		names = append(names, decl.ShortName)
	}
	want := []string{"addTodo", "completeTodo", "deleteTodo", "getAllTodos", "getPendingTodos", "getTodoStats"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected declarations %v", names)
	}
}

func TestAddThenListTodos(t *testing.T) {
	h := newHarness(t)
	result := h.call(t, "addTodo", `{"task":"  buy milk "}`)
	want := map[string]any{"success": true, "message": "Task 'buy milk' added successfully."}
	if !result.OK() || !reflect.DeepEqual(result.Value, want) {
		t.Fatalf("unexpected add result %#v (%v)", result.Value, result.Err)
	}

	result = h.call(t, "getAllTodos", `{}`)
	items := []any{map[string]any{"id": "1", "task": "buy milk", "status": "PENDING"}}
	if !result.OK() || !reflect.DeepEqual(result.Value, items) {
		t.Fatalf("unexpected list %#v (%v)", result.Value, result.Err)
	}
}

func TestAddRejectsBlankTask(t *testing.T) {
	h := newHarness(t)
	result := h.call(t, "addTodo", `{"task":"   "}`)
	if result.OK() || result.Message() != "task description must not be blank" {
		t.Fatalf("expected blank task failure, got %+v", result)
	}
	result = h.call(t, "addTodo", `{}`)
	if result.OK() || result.Message() != "missing required parameter: task" {
		t.Fatalf("expected missing argument failure, got %+v", result)
	}
}

func TestCompleteAndStats(t *testing.T) {
	h := newHarness(t,
		Item{ID: 1, Task: "a", Status: StatusPending},
		Item{ID: 2, Task: "b", Status: StatusPending},
	)
	result := h.call(t, "completeTodo", `{"todoId":"2"}`)
	if v, _ := result.Value.(map[string]any); v["success"] != true {
		t.Fatalf("unexpected complete result %#v (%v)", result.Value, result.Err)
	}
	result = h.call(t, "completeTodo", `{"todoId":"2"}`)
	if v, _ := result.Value.(map[string]any); v["success"] != false || v["message"] != "Todo 'b' is already completed." {
		t.Fatalf("unexpected second complete %#v", result.Value)
	}

	result = h.call(t, "getTodoStats", `{}`)
	want := map[string]any{"total": int32(2), "completed": int32(1), "pending": int32(1)}
	if !reflect.DeepEqual(result.Value, want) {
		t.Fatalf("unexpected stats %#v (%v)", result.Value, result.Err)
	}

	result = h.call(t, "getPendingTodos", `{}`)
	pending := []any{map[string]any{"id": "1", "task": "a", "status": "PENDING"}}
	if !reflect.DeepEqual(result.Value, pending) {
		t.Fatalf("unexpected pending %#v", result.Value)
	}
}

func TestDeleteUnknownAndInvalidIDs(t *testing.T) {
	h := newHarness(t, Item{ID: 5, Task: "keep", Status: StatusPending})

	result := h.call(t, "deleteTodo", `{"todoId":"99"}`)
	if v, _ := result.Value.(map[string]any); !result.OK() || v["success"] != false || v["message"] != "No todo found with id '99'." {
		t.Fatalf("unexpected unknown id result %#v (%v)", result.Value, result.Err)
	}

	result = h.call(t, "deleteTodo", `{"todoId":"abc"}`)
	var runtimeErr *invoker.CapabilityRuntimeError
	if !errors.As(result.Err, &runtimeErr) {
		t.Fatalf("expected runtime error for non-numeric id, got %v", result.Err)
	}

	// Numbers are accepted for string parameters.
	result = h.call(t, "deleteTodo", `{"todoId":5}`)
	if v, _ := result.Value.(map[string]any); v["success"] != true {
		t.Fatalf("unexpected delete %#v (%v)", result.Value, result.Err)
	}
	if len(h.source.items) != 0 {
		t.Fatalf("item not deleted: %v", h.source.items)
	}
}

func TestDisabledFunctionPerOwner(t *testing.T) {
	h := newHarness(t)
	if err := h.runtime.SetEnabled("tester", FunctionAddTodo, false); err != nil {
		t.Fatal(err)
	}
	result := h.call(t, "addTodo", `{"task":"x"}`)
	var disabled *invoker.CapabilityDisabledError
	if !errors.As(result.Err, &disabled) {
		t.Fatalf("expected disabled error, got %v", result.Err)
	}
	enabled, err := h.runtime.IsEnabled(context.Background(), "someone-else", FunctionAddTodo)
	if err != nil || !enabled {
		t.Fatalf("override must be per owner: %v %v", enabled, err)
	}
	if err := h.runtime.SetEnabled("tester", "pkg#unknown", true); err == nil {
		t.Fatal("expected unknown function error")
	}
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]Item{{Status: StatusPending}, {Status: StatusCompleted}, {Status: StatusCompleted}})
	if stats != (Stats{Total: 3, Completed: 2, Pending: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
