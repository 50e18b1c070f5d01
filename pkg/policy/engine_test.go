package policy

import (
	"context"
	"testing"

	"github.com/axon-sh/axon/pkg/events"
)

func TestEngineStartsClosed(t *testing.T) {
	engine := NewEngine(nil)
	decision := engine.Evaluate(context.Background(), Request{
		Action: "tool.invoke", Subject: "user:demo", Target: "tool:add",
	})
	if decision.Allowed {
		t.Fatalf("engine without rules must deny")
	}
}

func TestEngineEmitsDecisionEvents(t *testing.T) {
	sink := events.NewMemory()
	rs := mustRuleSet(t, []Rule{
		{ID: "allow-tools", Action: "tool.*", Subject: "user:*", Target: "*", Effect: EffectAllow},
	})
	engine := NewEngine(rs, WithEmitter(sink))
	ctx := context.Background()

	engine.Evaluate(ctx, Request{Action: "tool.invoke", Subject: "user:demo", Target: "tool:add"})
	engine.Evaluate(ctx, Request{Action: "model.invoke", Subject: "user:demo", Target: "model:iris"})

	allowed := sink.ByType(events.EventPolicyAllowed)
	denied := sink.ByType(events.EventPolicyDenied)
	if len(allowed) != 1 || len(denied) != 1 {
		t.Fatalf("expected one allowed and one denied event, got %d/%d", len(allowed), len(denied))
	}
	if allowed[0].Action != "tool.invoke" || allowed[0].Decision != "allow" {
		t.Fatalf("unexpected allowed event: %+v", allowed[0])
	}
	if denied[0].Payload["reason"] != "no matching rule" {
		t.Fatalf("unexpected denial reason: %+v", denied[0].Payload)
	}
}

func TestEngineReload(t *testing.T) {
	engine := NewEngine(nil)
	ctx := context.Background()
	req := Request{Action: "tool.invoke", Subject: "user:demo", Target: "tool:add"}

	if engine.Evaluate(ctx, req).Allowed {
		t.Fatalf("expected deny before reload")
	}

	engine.Reload(mustRuleSet(t, []Rule{
		{ID: "open-tools", Action: "tool.invoke", Subject: "*", Target: "*", Effect: EffectAllow},
	}))
	if !engine.Evaluate(ctx, req).Allowed {
		t.Fatalf("expected allow after reload")
	}

	// A nil reload must not clear the engine into a permissive or absent state.
	engine.Reload(nil)
	if engine.RuleSet().Len() != 1 {
		t.Fatalf("nil reload must keep the current rule set")
	}
}
