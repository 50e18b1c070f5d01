// Package policy implements the deny-by-default rule engine gating every
// kernel action.
package policy

import (
	"context"
	"strings"
)

// Effect is the outcome a rule assigns to matching requests.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes the action a caller wants evaluated.
type Request struct {
	Action  string
	Subject string
	Target  string
	Context map[string]any
}

// Decision captures the outcome of a policy evaluation. A denial is a
// normal evaluation result, never an error.
type Decision struct {
	Allowed bool
	Effect  Effect
	RuleID  string
	Reason  string
}

// Rule is a single policy rule. Patterns support exact match and a trailing
// "*" wildcard; an empty pattern matches nothing, "*" matches everything.
type Rule struct {
	ID         string
	Action     string
	Subject    string
	Target     string
	Effect     Effect
	Reason     string
	Conditions []Condition
}

// Condition names a predicate from the condition registry, with parameters.
type Condition struct {
	Name   string
	Params map[string]any

	predicate Predicate
}

// RuleSet is an immutable ordered sequence of rules. Order is significant:
// the first matching rule decides, and an exhausted set denies.
type RuleSet struct {
	name  string
	rules []Rule
}

// NewRuleSet validates the rules and binds their conditions. Unknown
// condition names or invalid effects fail construction so that a bad rule
// can never silently widen or narrow the set.
func NewRuleSet(name string, rules []Rule) (*RuleSet, error) {
	bound := make([]Rule, len(rules))
	copy(bound, rules)
	for i := range bound {
		if err := validateRule(&bound[i], i); err != nil {
			return nil, err
		}
	}
	return &RuleSet{name: name, rules: bound}, nil
}

// EmptyRuleSet returns a set with no rules. It still denies everything by
// the default-deny contract; it is the explicit representation of "no rules
// yet", not a permissive fallback.
func EmptyRuleSet() *RuleSet {
	rs, _ := NewRuleSet("empty", nil)
	return rs
}

// Name returns the rule set's name.
func (rs *RuleSet) Name() string { return rs.name }

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Evaluate walks the rules in order and returns the first match's effect.
// When no rule matches, the decision is deny.
func (rs *RuleSet) Evaluate(_ context.Context, req Request) Decision {
	for _, rule := range rs.rules {
		if !matchPattern(rule.Action, req.Action) {
			continue
		}
		if !matchPattern(rule.Subject, req.Subject) {
			continue
		}
		if !matchPattern(rule.Target, req.Target) {
			continue
		}
		if !conditionsPass(rule.Conditions, req.Context) {
			continue
		}
		allowed := rule.Effect == EffectAllow
		reason := rule.Reason
		if reason == "" {
			if allowed {
				reason = "allowed by rule " + rule.ID
			} else {
				reason = "denied by rule " + rule.ID
			}
		}
		return Decision{
			Allowed: allowed,
			Effect:  rule.Effect,
			RuleID:  rule.ID,
			Reason:  reason,
		}
	}
	return Decision{
		Allowed: false,
		Effect:  EffectDeny,
		Reason:  "no matching rule",
	}
}

// matchPattern supports exact strings and a trailing-* wildcard, e.g.
// "tool.*" matches "tool.invoke" and "user:*" matches "user:demo".
func matchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if suffix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(value, suffix)
	}
	return pattern == value
}

func conditionsPass(conditions []Condition, context map[string]any) bool {
	for _, cond := range conditions {
		if cond.predicate == nil || !cond.predicate(context) {
			return false
		}
	}
	return true
}
