package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/axon-sh/axon/pkg/events"
)

// KernelMetrics tracks task throughput and policy decisions for the kernel.
type KernelMetrics struct {
	taskCounter     metric.Int64Counter
	taskDuration    metric.Float64Histogram
	decisionCounter metric.Int64Counter
}

// NewKernelMetrics creates the kernel metric instruments on the global meter
// provider.
func NewKernelMetrics() (*KernelMetrics, error) {
	meter := otel.Meter("axon/kernel")

	taskCounter, err := meter.Int64Counter(
		"axon.tasks.total",
		metric.WithDescription("Tasks dispatched by status"),
	)
	if err != nil {
		return nil, err
	}

	taskDuration, err := meter.Float64Histogram(
		"axon.tasks.duration_ms",
		metric.WithDescription("Task execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	decisionCounter, err := meter.Int64Counter(
		"axon.policy.decisions",
		metric.WithDescription("Policy decisions by effect and action"),
	)
	if err != nil {
		return nil, err
	}

	return &KernelMetrics{
		taskCounter:     taskCounter,
		taskDuration:    taskDuration,
		decisionCounter: decisionCounter,
	}, nil
}

// RecordTask records a finished task with its terminal status.
func (km *KernelMetrics) RecordTask(ctx context.Context, status, runtime string, durationMs float64) {
	if km == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrStatus, status),
		attribute.String(AttrRuntime, runtime),
	)
	km.taskCounter.Add(ctx, 1, attrs)
	km.taskDuration.Record(ctx, durationMs, attrs)
}

// RecordDecision records a policy decision.
func (km *KernelMetrics) RecordDecision(ctx context.Context, action, effect string) {
	if km == nil {
		return
	}
	km.decisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPolicyAction, action),
		attribute.String(AttrPolicyEffect, effect),
	))
}

// MetricsEmitter bridges kernel events to metric instruments so every
// subsystem that emits events feeds the meters without extra wiring.
type MetricsEmitter struct {
	metrics *KernelMetrics
}

// NewMetricsEmitter wraps KernelMetrics as an events.Emitter.
func NewMetricsEmitter(metrics *KernelMetrics) *MetricsEmitter {
	return &MetricsEmitter{metrics: metrics}
}

func (m *MetricsEmitter) Emit(ctx context.Context, ev events.Event) {
	if m == nil || m.metrics == nil {
		return
	}
	switch ev.Type {
	case events.EventTaskCompleted:
		m.metrics.RecordTask(ctx, "completed", runtimeFromPayload(ev), durationFromPayload(ev))
	case events.EventTaskFailed:
		m.metrics.RecordTask(ctx, "failed", runtimeFromPayload(ev), durationFromPayload(ev))
	case events.EventPolicyAllowed:
		m.metrics.RecordDecision(ctx, ev.Action, "allow")
	case events.EventPolicyDenied:
		m.metrics.RecordDecision(ctx, ev.Action, "deny")
	}
}

func runtimeFromPayload(ev events.Event) string {
	if ev.Payload == nil {
		return ""
	}
	if rt, ok := ev.Payload["runtime"].(string); ok {
		return rt
	}
	return ""
}

func durationFromPayload(ev events.Event) float64 {
	if ev.Payload == nil {
		return 0
	}
	switch v := ev.Payload["duration_ms"].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
