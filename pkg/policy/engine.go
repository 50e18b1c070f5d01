package policy

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/axon-sh/axon/pkg/events"
	"github.com/axon-sh/axon/pkg/telemetry"
)

// Engine evaluates requests against the currently loaded rule set and emits
// policy decision events. The rule set is swapped atomically on reload: an
// in-flight evaluation observes exactly one generation of rules.
type Engine struct {
	current atomic.Pointer[RuleSet]
	emitter events.Emitter
	tracer  trace.Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEmitter attaches an event sink to the engine.
func WithEmitter(emitter events.Emitter) EngineOption {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// NewEngine creates an engine. A nil rule set starts the engine with the
// explicit empty set, which denies everything.
func NewEngine(rs *RuleSet, opts ...EngineOption) *Engine {
	e := &Engine{
		emitter: events.Noop{},
		tracer:  otel.Tracer("axon/policy"),
	}
	if rs == nil {
		rs = EmptyRuleSet()
	}
	e.current.Store(rs)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RuleSet returns the currently active rule set.
func (e *Engine) RuleSet() *RuleSet {
	return e.current.Load()
}

// Reload swaps in a new rule set. A nil argument is rejected by keeping the
// current set; callers that fail to produce a valid set must not be able to
// clear the engine into an implicit state.
func (e *Engine) Reload(rs *RuleSet) {
	if rs == nil {
		return
	}
	e.current.Store(rs)
}

// Evaluate returns the decision for the request and emits the matching
// policy.allowed / policy.denied event.
func (e *Engine) Evaluate(ctx context.Context, req Request) Decision {
	ctx, span := e.tracer.Start(ctx, "Policy.Evaluate", trace.WithAttributes(
		attribute.String(telemetry.AttrSubject, req.Subject),
		attribute.String(telemetry.AttrTarget, req.Target),
	))
	defer span.End()

	decision := e.current.Load().Evaluate(ctx, req)
	span.SetAttributes(telemetry.PolicyAttrs(req.Action, string(decision.Effect), decision.RuleID)...)

	eventType := events.EventPolicyDenied
	if decision.Allowed {
		eventType = events.EventPolicyAllowed
	}
	event := events.New(eventType)
	event.Subject = req.Subject
	event.Target = req.Target
	event.Action = req.Action
	event.Decision = string(decision.Effect)
	event.Payload = map[string]any{
		"rule_id": decision.RuleID,
		"reason":  decision.Reason,
	}
	e.emitter.Emit(ctx, event)

	return decision
}
