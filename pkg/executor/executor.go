package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/axon-sh/axon/pkg/errors"
	"github.com/axon-sh/axon/pkg/events"
	"github.com/axon-sh/axon/pkg/policy"
	"github.com/axon-sh/axon/pkg/registry"
	"github.com/axon-sh/axon/pkg/spec"
	"github.com/axon-sh/axon/pkg/telemetry"
)

// Executor resolves a task's target, obtains a policy verdict, and invokes
// the driver bound to the target's runtime tag. No driver runs without an
// allow decision.
type Executor struct {
	registry *registry.Registry
	engine   *policy.Engine
	drivers  *DriverRegistry
	emitter  events.Emitter
	tracer   trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithEmitter attaches an event sink.
func WithEmitter(emitter events.Emitter) Option {
	return func(e *Executor) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// New wires an executor with its collaborators.
func New(reg *registry.Registry, engine *policy.Engine, drivers *DriverRegistry, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		engine:   engine,
		drivers:  drivers,
		emitter:  events.Noop{},
		tracer:   otel.Tracer("axon/executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Drivers exposes the driver registry for registration at wiring time.
func (e *Executor) Drivers() *DriverRegistry {
	return e.drivers
}

// RunTask executes a task end to end. Dispatch-time failures are captured
// into the result rather than returned as faults, so a caller iterating
// many tasks is never interrupted by one failing task. The error return is
// reserved for caller-level contract violations.
func (e *Executor) RunTask(ctx context.Context, task *Task) (Result, error) {
	if err := task.validate(); err != nil {
		return Result{}, err
	}

	ctx, span := e.tracer.Start(ctx, "Executor.RunTask", trace.WithAttributes(
		attribute.String(telemetry.AttrTaskID, task.ID),
		attribute.String(telemetry.AttrSubject, task.Subject),
		attribute.String(telemetry.AttrTarget, task.TargetID),
	))
	defer span.End()

	log := slog.Default()
	started := time.Now().UTC()
	e.emitTaskEvent(ctx, events.EventTaskCreated, task, "", "")

	// 1) Resolve the target. This precedes policy evaluation: there is no
	// target to evaluate a policy against until resolution succeeds.
	target, err := e.registry.Resolve(task.TargetID)
	if err != nil {
		return e.fail(ctx, task, started, "", errors.AsError(err)), nil
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrSpecID, target.ID),
		attribute.String(telemetry.AttrSpecKind, string(target.Kind)),
		attribute.String(telemetry.AttrRuntime, target.Runtime),
	)

	// 2) Derive the action from the resolved kind and ask for a verdict.
	action := ActionForKind(target.Kind)
	decision := e.engine.Evaluate(ctx, policy.Request{
		Action:  action,
		Subject: task.Subject,
		Target:  target.ID,
		Context: policyContext(task, target),
	})

	// 3) Fail closed: no driver is invoked on deny.
	if !decision.Allowed {
		log.Info("executor.task.denied",
			slog.String("task_id", task.ID),
			slog.String("subject", task.Subject),
			slog.String("target", target.ID),
			slog.String("rule_id", decision.RuleID),
		)
		span.SetAttributes(attribute.String(telemetry.AttrStatus, string(StatusDenied)))
		return Result{
			TaskID:     task.ID,
			Status:     StatusDenied,
			Denial:     decision.Reason,
			Runtime:    target.Runtime,
			TargetID:   target.ID,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}, nil
	}

	// 4) Select the driver by the runtime tag alone.
	driver, err := e.drivers.Get(target.Runtime)
	if err != nil {
		return e.fail(ctx, task, started, target.ID, errors.AsError(err)), nil
	}

	log.Info("executor.task.start",
		slog.String("task_id", task.ID),
		slog.String("subject", task.Subject),
		slog.String("target", target.ID),
		slog.String("runtime", target.Runtime),
	)
	e.emitTaskEvent(ctx, events.EventTaskStarted, task, target.ID, action)

	// 5) Invoke, bounded by the task deadline when one is set.
	output, invokeErr := e.invoke(ctx, driver, target, task)
	finished := time.Now().UTC()
	if invokeErr != nil {
		span.SetAttributes(
			attribute.String(telemetry.AttrStatus, string(StatusFailed)),
			attribute.String(telemetry.AttrErrorCode, string(invokeErr.Code)),
		)
		result := e.fail(ctx, task, started, target.ID, invokeErr)
		result.Runtime = target.Runtime
		return result, nil
	}

	log.Info("executor.task.complete",
		slog.String("task_id", task.ID),
		slog.String("target", target.ID),
		slog.String("runtime", target.Runtime),
	)
	span.SetAttributes(attribute.String(telemetry.AttrStatus, string(StatusCompleted)))
	done := events.New(events.EventTaskCompleted)
	done.Subject = task.Subject
	done.Target = target.ID
	done.Action = action
	done.TaskID = task.ID
	done.Payload = map[string]any{
		"runtime":     target.Runtime,
		"duration_ms": float64(finished.Sub(started)) / float64(time.Millisecond),
	}
	e.emitter.Emit(ctx, done)

	return Result{
		TaskID:     task.ID,
		Status:     StatusCompleted,
		Output:     output,
		Runtime:    target.Runtime,
		TargetID:   target.ID,
		StartedAt:  started,
		FinishedAt: finished,
	}, nil
}

// invoke runs the driver with panic capture and deadline enforcement. Past
// the deadline the executor stops waiting, but the driver call itself is
// only aborted if the driver honors context cancellation.
func (e *Executor) invoke(ctx context.Context, driver Driver, target *spec.Spec, task *Task) (any, *errors.Error) {
	if task.Deadline <= 0 {
		return invokeRecovering(ctx, driver, target, task)
	}

	ctx, cancel := context.WithTimeout(ctx, task.Deadline)
	defer cancel()

	type outcome struct {
		output any
		err    *errors.Error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := invokeRecovering(ctx, driver, target, task)
		done <- outcome{output, err}
	}()

	select {
	case <-ctx.Done():
		return nil, deadlineError(task, target)
	case out := <-done:
		// The driver may observe the expired context and return before the
		// executor's own Done wake is selected. That is still a deadline
		// failure, not a driver failure.
		if out.err != nil && stderrors.Is(out.err, context.DeadlineExceeded) {
			return nil, deadlineError(task, target)
		}
		return out.output, out.err
	}
}

func deadlineError(task *Task, target *spec.Spec) *errors.Error {
	return errors.New(errors.CodeTimeout,
		fmt.Sprintf("task %s exceeded its deadline", task.ID), context.DeadlineExceeded).
		WithContext("deadline", task.Deadline.String()).
		WithContext("runtime", target.Runtime)
}

func invokeRecovering(ctx context.Context, driver Driver, target *spec.Spec, task *Task) (output any, invokeErr *errors.Error) {
	defer func() {
		if r := recover(); r != nil {
			invokeErr = errors.Newf(errors.CodeDriverExecution,
				"driver for runtime %q panicked: %v", target.Runtime, r)
		}
	}()
	out, err := driver.Invoke(ctx, target.Binding, task.Input)
	if err != nil {
		if ae, ok := err.(*errors.Error); ok && ae.Code == errors.CodeTimeout {
			return nil, ae
		}
		return nil, errors.New(errors.CodeDriverExecution,
			fmt.Sprintf("driver for runtime %q failed", target.Runtime), err)
	}
	return out, nil
}

func (e *Executor) fail(ctx context.Context, task *Task, started time.Time, targetID string, err *errors.Error) Result {
	slog.Default().Error("executor.task.failed",
		slog.String("task_id", task.ID),
		slog.String("subject", task.Subject),
		slog.String("target", task.TargetID),
		slog.String("error", err.Error()),
	)
	event := events.New(events.EventTaskFailed)
	event.Subject = task.Subject
	event.Target = targetID
	event.TaskID = task.ID
	event.Payload = map[string]any{
		"error":       err.Error(),
		"code":        string(err.Code),
		"duration_ms": float64(time.Since(started)) / float64(time.Millisecond),
	}
	e.emitter.Emit(ctx, event)

	return Result{
		TaskID:     task.ID,
		Status:     StatusFailed,
		Err:        err,
		TargetID:   targetID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
}

func (e *Executor) emitTaskEvent(ctx context.Context, eventType events.Type, task *Task, targetID, action string) {
	event := events.New(eventType)
	event.Subject = task.Subject
	event.Target = targetID
	event.Action = action
	event.TaskID = task.ID
	if targetID == "" {
		event.Target = task.TargetID
	}
	e.emitter.Emit(ctx, event)
}

func policyContext(task *Task, target *spec.Spec) map[string]any {
	ctx := map[string]any{
		"subject":   task.Subject,
		"runtime":   target.Runtime,
		"spec_kind": string(target.Kind),
	}
	if task.Workspace != "" {
		ctx["workspace"] = task.Workspace
	}
	if input, ok := task.Input.(string); ok {
		ctx["input_bytes"] = len(input)
	} else if input, ok := task.Input.([]byte); ok {
		ctx["input_bytes"] = len(input)
	}
	for k, v := range task.Metadata {
		ctx["meta."+k] = v
	}
	return ctx
}
