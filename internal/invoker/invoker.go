// Package invoker runs one capability call end to end: enabled check,
// argument marshalling, dispatch and result parsing.
package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/grixate/fnbridge/internal/marshal"
	"github.com/grixate/fnbridge/internal/metadata"
	"github.com/grixate/fnbridge/internal/schema"
	"github.com/grixate/fnbridge/internal/telemetry"
)

const maxEventText = 4096

type Invoker struct {
	runtime    Runtime
	marshaller *marshal.Marshaller
	metrics    *telemetry.Metrics
	events     EventStore
	log        *log.Logger
}

// New wires an invoker. metrics and events are optional.
func New(runtime Runtime, metrics *telemetry.Metrics, events EventStore, logger *log.Logger) *Invoker {
	if logger == nil {
		logger = log.Default()
	}
	return &Invoker{
		runtime:    runtime,
		marshaller: marshal.New(metrics, logger),
		metrics:    metrics,
		events:     events,
		log:        logger,
	}
}

// Invoke never panics and never returns a Go error: every failure is
// carried by the Result.
func (i *Invoker) Invoke(ctx context.Context, owner string, fn metadata.FunctionMetadata, decl schema.FunctionDeclaration, args map[string]json.RawMessage) (result Result) {
	traceID := uuid.NewString()
	started := time.Now()
	if i.metrics != nil {
		i.metrics.Invocations.Add(1)
		i.metrics.InFlight.Add(1)
	}
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{Err: fmt.Errorf("invocation panic: %v", rec)}
		}
		result.TraceID = traceID
		i.finish(ctx, owner, decl.Name, args, result, time.Since(started))
	}()

	if i.runtime == nil {
		return Result{Err: errors.New("capability runtime not configured")}
	}
	enabled, err := i.runtime.IsEnabled(ctx, owner, decl.Name)
	if err != nil {
		return Result{Err: fmt.Errorf("check enabled state: %w", err)}
	}
	if !enabled {
		if i.metrics != nil {
			i.metrics.DisabledRejections.Add(1)
		}
		return Result{Err: &CapabilityDisabledError{Owner: owner, Function: decl.Name}}
	}

	params, err := i.marshaller.Build(decl.Parameters, fn.Parameters, fn.Components, args)
	if err != nil {
		if i.metrics != nil {
			i.metrics.ArgumentErrors.Add(1)
		}
		return Result{Err: err}
	}

	returned, err := i.runtime.Execute(ctx, Request{
		TraceID:    traceID,
		Owner:      owner,
		FunctionID: decl.Name,
		Parameters: params,
	})
	if err != nil {
		if i.metrics != nil {
			i.metrics.RuntimeErrors.Add(1)
		}
		return Result{Err: &CapabilityRuntimeError{Function: decl.Name, Err: err}}
	}

	value, err := i.marshaller.Parse(decl.Response, returned)
	if err != nil {
		return Result{Err: fmt.Errorf("parse result: %w", err)}
	}
	return Result{Value: value}
}

func (i *Invoker) finish(ctx context.Context, owner, function string, args map[string]json.RawMessage, result Result, elapsed time.Duration) {
	if i.metrics != nil {
		i.metrics.InFlight.Add(-1)
		if !result.OK() {
			i.metrics.InvocationFailures.Add(1)
		}
	}
	if result.OK() {
		i.log.Printf("event=invocation_completed trace_id=%s function=%s duration_ms=%d", result.TraceID, function, elapsed.Milliseconds())
	} else {
		i.log.Printf("event=invocation_failed trace_id=%s function=%s duration_ms=%d err=%v", result.TraceID, function, elapsed.Milliseconds(), result.Err)
	}
	if i.events == nil {
		return
	}
	event := Event{
		TraceID:    result.TraceID,
		Owner:      owner,
		Function:   function,
		Arguments:  encodeText(args),
		Error:      result.Message(),
		DurationMS: elapsed.Milliseconds(),
	}
	if result.OK() {
		event.Output = encodeText(result.Value)
	}
	if err := i.events.AppendInvocationEvent(context.WithoutCancel(ctx), event); err != nil {
		i.log.Printf("event=invocation_event_failed trace_id=%s err=%v", result.TraceID, err)
	}
}

func encodeText(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if len(raw) > maxEventText {
		return string(raw[:maxEventText]) + "..."
	}
	return string(raw)
}
