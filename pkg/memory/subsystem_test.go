package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/axon-sh/axon/pkg/events"
	"github.com/axon-sh/axon/pkg/policy"
)

func openEngine(t *testing.T) *policy.Engine {
	t.Helper()
	rs, err := policy.NewRuleSet("memory-test", []policy.Rule{
		{ID: "deny-secrets", Action: "memory.*", Subject: "*", Target: "memory:secrets", Effect: policy.EffectDeny, Reason: "secrets channel is sealed"},
		{ID: "allow-memory", Action: "memory.*", Subject: "user:*", Target: "memory:*", Effect: policy.EffectAllow},
	})
	if err != nil {
		t.Fatalf("ruleset: %v", err)
	}
	return policy.NewEngine(rs)
}

func TestSubsystemWriteAndQuery(t *testing.T) {
	ctx := context.Background()
	sink := events.NewMemory()
	sub := NewSubsystem(openEngine(t), WithEmitter(sink))

	record, decision, err := sub.WriteSymbolic(ctx, "user:alice", "notes", "n1", "kernel sketch", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !decision.Allowed || record == nil {
		t.Fatalf("expected allowed write, got %+v", decision)
	}

	records, decision, err := sub.QuerySymbolic(ctx, "user:alice", "notes", Query{TextContains: "kernel"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !decision.Allowed || len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	if got := len(sink.ByType(events.EventMemoryWrite)); got != 1 {
		t.Fatalf("expected 1 memory.write event, got %d", got)
	}
	if got := len(sink.ByType(events.EventMemoryRead)); got != 1 {
		t.Fatalf("expected 1 memory.read event, got %d", got)
	}
}

func TestSubsystemDenialReturnsNoData(t *testing.T) {
	ctx := context.Background()
	sink := events.NewMemory()
	sub := NewSubsystem(openEngine(t), WithEmitter(sink))

	record, decision, err := sub.WriteSymbolic(ctx, "user:alice", "secrets", "s1", "hidden", WriteOptions{})
	if err != nil {
		t.Fatalf("write returned error: %v", err)
	}
	if decision.Allowed || record != nil {
		t.Fatalf("expected denial without data, got %+v / %+v", decision, record)
	}
	if decision.RuleID != "deny-secrets" {
		t.Fatalf("unexpected rule: %s", decision.RuleID)
	}

	// Unknown subjects fall through to the default deny.
	records, decision, err := sub.QuerySymbolic(ctx, "job:batcher", "notes", Query{})
	if err != nil {
		t.Fatalf("query returned error: %v", err)
	}
	if decision.Allowed || records != nil {
		t.Fatalf("expected default deny, got %+v", decision)
	}

	if got := len(sink.ByType(events.EventMemoryWrite)); got != 0 {
		t.Fatalf("denied write must not emit memory.write, got %d", got)
	}
}

func TestSubsystemVectorRoundTrip(t *testing.T) {
	ctx := context.Background()
	sub := NewSubsystem(openEngine(t))

	for id, text := range map[string]string{
		"p1": "the cat sat on the mat",
		"p2": "policy engine internals",
	} {
		point, decision, err := sub.IndexVector(ctx, "user:alice", "notes", id, text, map[string]any{"source": "test"})
		if err != nil {
			t.Fatalf("index failed: %v", err)
		}
		if !decision.Allowed || point == nil {
			t.Fatalf("expected indexed point, got %+v", decision)
		}
	}

	results, decision, err := sub.SearchVector(ctx, "user:alice", "notes", "cat on a mat", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !decision.Allowed || len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Point.Payload["record_id"] != "p1" {
		t.Fatalf("expected p1 to rank first, got %+v", results[0].Point.Payload)
	}
	if results[0].Point.Payload["text"] != "the cat sat on the mat" {
		t.Fatalf("payload text lost: %+v", results[0].Point.Payload)
	}

	denied, decision, err := sub.SearchVector(ctx, "user:alice", "secrets", "anything", 5)
	if err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if decision.Allowed || denied != nil {
		t.Fatalf("expected denial, got %+v", decision)
	}
}

func TestIndexVectorPointIDs(t *testing.T) {
	// Point ids must be UUIDs regardless of the caller's record id shape:
	// remote vector backends reject arbitrary strings as point ids. The
	// record id and channel travel in the payload instead. Indexing the
	// same channel repeatedly must also succeed; the collection is ensured
	// on every write.
	ctx := context.Background()
	sub := NewSubsystem(openEngine(t))

	for i := 0; i < 3; i++ {
		point, decision, err := sub.IndexVector(ctx, "user:alice", "docs", "docs:custom-id", "repeated write", nil)
		if err != nil {
			t.Fatalf("index %d failed: %v", i, err)
		}
		if !decision.Allowed || point == nil {
			t.Fatalf("index %d: expected allowed write, got %+v", i, decision)
		}
		if _, err := uuid.Parse(point.ID); err != nil {
			t.Fatalf("point id %q is not a uuid: %v", point.ID, err)
		}
		if point.Payload["record_id"] != "docs:custom-id" || point.Payload["channel"] != "docs" {
			t.Fatalf("payload missing record identity: %+v", point.Payload)
		}
	}
}
