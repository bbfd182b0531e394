package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grixate/fnbridge/internal/appdata"
)

type Request struct {
	TraceID    string
	Owner      string
	FunctionID string
	Parameters appdata.Data
}

// Runtime executes capabilities on behalf of an owner. Execute returns the
// result container; an error is a failure reported by the capability.
type Runtime interface {
	IsEnabled(ctx context.Context, owner, functionID string) (bool, error)
	Execute(ctx context.Context, req Request) (appdata.Data, error)
}

type Event struct {
	ID         string    `json:"id"`
	TraceID    string    `json:"trace_id"`
	Owner      string    `json:"owner"`
	Function   string    `json:"function"`
	Arguments  string    `json:"arguments"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
	Version    int       `json:"version"`
}

type EventStore interface {
	AppendInvocationEvent(ctx context.Context, event Event) error
}

// Result is the outcome of one invocation. Exactly one of Value and Err is
// meaningful; a nil Value with a nil Err is a successful null result.
type Result struct {
	TraceID string
	Value   any
	Err     error
}

func (r Result) OK() bool { return r.Err == nil }

func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Display renders the result the way callers show it: the JSON value on
// success, an error line otherwise.
func (r Result) Display() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	raw, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprintf("%v", r.Value)
	}
	return string(raw)
}

type CapabilityDisabledError struct {
	Owner    string
	Function string
}

func (e *CapabilityDisabledError) Error() string {
	return fmt.Sprintf("capability %s is disabled for %s", e.Function, e.Owner)
}

// CapabilityRuntimeError carries a failure reported by the runtime. Its
// message is the runtime's message, unchanged.
type CapabilityRuntimeError struct {
	Function string
	Err      error
}

func (e *CapabilityRuntimeError) Error() string { return e.Err.Error() }

func (e *CapabilityRuntimeError) Unwrap() error { return e.Err }
