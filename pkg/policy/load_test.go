package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/axon-sh/axon/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "policies.yaml", `
name: demo
rules:
  - id: allow-user-tools
    action: tool.invoke
    subject: "user:*"
    target: "tool:*"
    effect: allow
  - id: deny-secrets
    action: resource.access
    subject: "*"
    target: "resource:secrets*"
    effect: deny
    reason: secrets are off limits
`)
	rs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rs.Name() != "demo" || rs.Len() != 2 {
		t.Fatalf("unexpected rule set: %s/%d", rs.Name(), rs.Len())
	}

	decision := rs.Evaluate(context.Background(), Request{
		Action: "resource.access", Subject: "user:demo", Target: "resource:secrets_db",
	})
	if decision.Allowed || decision.Reason != "secrets are off limits" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "policies.json", `{
  "name": "demo-json",
  "rules": [
    {"id": "allow-models", "action": "model.invoke", "subject": "*", "target": "model:*", "effect": "allow"}
  ]
}`)
	rs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rs.Len() != 1 {
		t.Fatalf("expected 1 rule, got %d", rs.Len())
	}
}

func TestLoadWithConditions(t *testing.T) {
	path := writeFile(t, "policies.yaml", `
rules:
  - id: bounded
    action: tool.invoke
    subject: "*"
    target: "*"
    effect: allow
    conditions:
      - name: max_input_bytes
        params:
          limit: 64
`)
	rs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	decision := rs.Evaluate(context.Background(), Request{
		Action: "tool.invoke", Subject: "user:demo", Target: "tool:add",
		Context: map[string]any{"input_bytes": 32},
	})
	if !decision.Allowed {
		t.Fatalf("expected allow under condition")
	}
}

func TestMalformedRuleFailsWholeLoad(t *testing.T) {
	path := writeFile(t, "policies.yaml", `
rules:
  - id: fine
    action: tool.invoke
    subject: "*"
    target: "*"
    effect: allow
  - id: broken
    action: model.invoke
    subject: "*"
    target: "*"
    effect: perhaps
`)
	_, err := LoadFile(path)
	if !errors.IsCode(err, errors.CodePolicyLoad) {
		t.Fatalf("expected policy load error, got %v", err)
	}
}

func TestUnknownConditionFailsWholeLoad(t *testing.T) {
	path := writeFile(t, "policies.yaml", `
rules:
  - id: mystery
    action: tool.invoke
    subject: "*"
    target: "*"
    effect: allow
    conditions:
      - name: phase_of_moon
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected unknown condition to fail the load")
	}
}

func TestLoadFiles(t *testing.T) {
	first := writeFile(t, "a.yaml", `
name: a
rules:
  - id: one
    action: tool.invoke
    subject: "*"
    target: "*"
    effect: deny
`)
	second := writeFile(t, "b.yaml", `
name: b
rules:
  - id: two
    action: tool.invoke
    subject: "*"
    target: "*"
    effect: allow
`)
	rs, err := LoadFiles([]string{first, second})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rs.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", rs.Len())
	}
	// File order is rule order: the deny from the first file wins.
	decision := rs.Evaluate(context.Background(), Request{
		Action: "tool.invoke", Subject: "user:demo", Target: "tool:add",
	})
	if decision.Allowed || decision.RuleID != "one" {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	if rs, err := LoadFiles(nil); err != nil || rs.Len() != 0 {
		t.Fatalf("empty path list must produce the empty set: %v", err)
	}
}
