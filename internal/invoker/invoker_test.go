package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/grixate/fnbridge/internal/appdata"
	"github.com/grixate/fnbridge/internal/catalog"
	"github.com/grixate/fnbridge/internal/marshal"
	"github.com/grixate/fnbridge/internal/metadata"
	"github.com/grixate/fnbridge/internal/schema"
	"github.com/grixate/fnbridge/internal/telemetry"
)

type fakeRuntime struct {
	mu       sync.Mutex
	disabled map[string]bool
	calls    []Request
	execute  func(req Request) (appdata.Data, error)
}

func (f *fakeRuntime) IsEnabled(_ context.Context, _ string, functionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.disabled[functionID], nil
}

func (f *fakeRuntime) Execute(_ context.Context, req Request) (appdata.Data, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(req)
	}
	return appdata.Empty, nil
}

type memoryEvents struct {
	mu     sync.Mutex
	events []Event
}

func (m *memoryEvents) AppendInvocationEvent(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func addItem(t *testing.T) (metadata.FunctionMetadata, schema.FunctionDeclaration) {
	t.Helper()
	fn := metadata.FunctionMetadata{
		ID:          "pkg#addItem",
		Description: "Adds an item",
		Parameters: []metadata.ParameterMetadata{
			{Name: "task", DataType: metadata.Primitive(metadata.KindString, ""), Required: true},
		},
		Response: metadata.ResponseMetadata{ValueType: metadata.Primitive(metadata.KindLong, "")},
	}
	decl, err := catalog.ToFunctionDeclaration(fn)
	if err != nil {
		t.Fatal(err)
	}
	return fn, decl
}

func args(text string) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		panic(err)
	}
	return out
}

func newTestInvoker(rt Runtime) (*Invoker, *telemetry.Metrics, *memoryEvents, *bytes.Buffer) {
	var buf bytes.Buffer
	metrics := &telemetry.Metrics{}
	events := &memoryEvents{}
	return New(rt, metrics, events, log.New(&buf, "", 0)), metrics, events, &buf
}

func TestInvokeSuccess(t *testing.T) {
	rt := &fakeRuntime{execute: func(req Request) (appdata.Data, error) {
		task, _ := req.Parameters.String("task")
		if task != "buy milk" {
			return appdata.Data{}, fmt.Errorf("unexpected task %q", task)
		}
		return appdata.Result(func(b *appdata.Builder, key string) { b.SetLong(key, 42) }), nil
	}}
	inv, metrics, events, logs := newTestInvoker(rt)
	fn, decl := addItem(t)

	result := inv.Invoke(context.Background(), "cli", fn, decl, args(`{"task":"buy milk"}`))
	if !result.OK() {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if result.Value != int64(42) {
		t.Fatalf("unexpected value %#v", result.Value)
	}
	if result.Display() != "42" {
		t.Fatalf("unexpected display %q", result.Display())
	}
	if result.TraceID == "" || rt.calls[0].TraceID != result.TraceID {
		t.Fatalf("trace id not propagated: %q vs %q", result.TraceID, rt.calls[0].TraceID)
	}
	if rt.calls[0].FunctionID != "pkg#addItem" || rt.calls[0].Owner != "cli" {
		t.Fatalf("unexpected request %+v", rt.calls[0])
	}
	if metrics.Invocations.Load() != 1 || metrics.InvocationFailures.Load() != 0 || metrics.InFlight.Load() != 0 {
		t.Fatalf("unexpected metrics %v", metrics.Snapshot())
	}
	if len(events.events) != 1 || events.events[0].Output != "42" {
		t.Fatalf("unexpected events %+v", events.events)
	}
	if !strings.Contains(logs.String(), "event=invocation_completed") {
		t.Fatalf("expected completion log, got %q", logs.String())
	}
}

func TestInvokeDisabledSkipsMarshalling(t *testing.T) {
	rt := &fakeRuntime{disabled: map[string]bool{"pkg#addItem": true}}
	inv, metrics, _, _ := newTestInvoker(rt)
	fn, decl := addItem(t)

	// Arguments are invalid too; the disabled check must win.
	result := inv.Invoke(context.Background(), "cli", fn, decl, args(`{}`))
	var disabled *CapabilityDisabledError
	if !errors.As(result.Err, &disabled) {
		t.Fatalf("expected disabled error, got %v", result.Err)
	}
	if len(rt.calls) != 0 {
		t.Fatal("runtime must not be called")
	}
	if metrics.DisabledRejections.Load() != 1 || metrics.ArgumentErrors.Load() != 0 {
		t.Fatalf("unexpected metrics %v", metrics.Snapshot())
	}
}

func TestInvokeMissingArgumentIsFailedResult(t *testing.T) {
	rt := &fakeRuntime{}
	inv, metrics, events, _ := newTestInvoker(rt)
	fn, decl := addItem(t)

	result := inv.Invoke(context.Background(), "cli", fn, decl, args(`{}`))
	var missing *marshal.MissingArgumentError
	if !errors.As(result.Err, &missing) || missing.Name != "task" {
		t.Fatalf("expected missing task, got %v", result.Err)
	}
	if result.Message() != "missing required parameter: task" {
		t.Fatalf("unexpected message %q", result.Message())
	}
	if len(rt.calls) != 0 {
		t.Fatal("runtime must not be called")
	}
	if metrics.ArgumentErrors.Load() != 1 || metrics.InvocationFailures.Load() != 1 {
		t.Fatalf("unexpected metrics %v", metrics.Snapshot())
	}
	if len(events.events) != 1 || events.events[0].Error == "" {
		t.Fatalf("failed call must be recorded: %+v", events.events)
	}
}

func TestInvokePropagatesRuntimeMessage(t *testing.T) {
	rt := &fakeRuntime{execute: func(Request) (appdata.Data, error) {
		return appdata.Data{}, errors.New("todo store is read-only")
	}}
	inv, metrics, _, _ := newTestInvoker(rt)
	fn, decl := addItem(t)

	result := inv.Invoke(context.Background(), "cli", fn, decl, args(`{"task":"x"}`))
	var runtimeErr *CapabilityRuntimeError
	if !errors.As(result.Err, &runtimeErr) {
		t.Fatalf("expected runtime error, got %v", result.Err)
	}
	if result.Message() != "todo store is read-only" {
		t.Fatalf("runtime message must pass through unchanged, got %q", result.Message())
	}
	if result.Display() != "Error: todo store is read-only" {
		t.Fatalf("unexpected display %q", result.Display())
	}
	if metrics.RuntimeErrors.Load() != 1 {
		t.Fatalf("unexpected metrics %v", metrics.Snapshot())
	}
}

func TestInvokeRecoversPanics(t *testing.T) {
	rt := &fakeRuntime{execute: func(Request) (appdata.Data, error) {
		panic("boom")
	}}
	inv, metrics, _, _ := newTestInvoker(rt)
	fn, decl := addItem(t)

	result := inv.Invoke(context.Background(), "cli", fn, decl, args(`{"task":"x"}`))
	if result.OK() || !strings.Contains(result.Message(), "boom") {
		t.Fatalf("expected recovered panic, got %+v", result)
	}
	if result.TraceID == "" {
		t.Fatal("recovered result must keep its trace id")
	}
	if metrics.InFlight.Load() != 0 {
		t.Fatalf("in-flight gauge leaked: %d", metrics.InFlight.Load())
	}
}

func TestInvokeWithoutRuntime(t *testing.T) {
	inv := New(nil, nil, nil, log.New(&bytes.Buffer{}, "", 0))
	fn, decl := addItem(t)
	if result := inv.Invoke(context.Background(), "cli", fn, decl, args(`{"task":"x"}`)); result.OK() {
		t.Fatal("expected failure without runtime")
	}
}

func TestConcurrentInvocationsDoNotInterfere(t *testing.T) {
	rt := &fakeRuntime{execute: func(req Request) (appdata.Data, error) {
		task, _ := req.Parameters.String("task")
		return appdata.Result(func(b *appdata.Builder, key string) { b.SetLong(key, int64(len(task))) }), nil
	}}
	inv, metrics, _, _ := newTestInvoker(rt)
	fn, decl := addItem(t)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for n := 0; n < 64; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			task := strings.Repeat("x", n+1)
			result := inv.Invoke(context.Background(), "cli", fn, decl, map[string]json.RawMessage{
				"task": json.RawMessage(`"` + task + `"`),
			})
			if result.Value != int64(n+1) {
				errs <- fmt.Errorf("call %d got %v (%v)", n, result.Value, result.Err)
			}
		}(n)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if metrics.Invocations.Load() != 64 || metrics.InFlight.Load() != 0 {
		t.Fatalf("unexpected metrics %v", metrics.Snapshot())
	}
}
