package policy

import (
	"fmt"
	"strings"

	"github.com/axon-sh/axon/pkg/errors"
)

// Predicate inspects the evaluation context and reports whether the
// condition holds.
type Predicate func(context map[string]any) bool

// PredicateBuilder constructs a predicate from rule-file parameters.
// Builders validate their params eagerly so that a bad condition fails the
// rule-set load, not a later evaluation.
type PredicateBuilder func(params map[string]any) (Predicate, error)

var builders = map[string]PredicateBuilder{
	"context_equals":  buildContextEquals,
	"context_present": buildContextPresent,
	"subject_prefix":  buildSubjectPrefix,
	"max_input_bytes": buildMaxInputBytes,
}

// RegisterCondition adds a named predicate builder. Registering an existing
// name is an error; conditions cannot be silently redefined.
func RegisterCondition(name string, builder PredicateBuilder) error {
	if _, exists := builders[name]; exists {
		return errors.Newf(errors.CodePolicyLoad, "condition %q is already registered", name)
	}
	builders[name] = builder
	return nil
}

func validateRule(rule *Rule, index int) error {
	if strings.TrimSpace(rule.ID) == "" {
		rule.ID = fmt.Sprintf("rule-%d", index)
	}
	switch rule.Effect {
	case EffectAllow, EffectDeny:
	default:
		return errors.Newf(errors.CodePolicyLoad,
			"rule %q has invalid effect %q", rule.ID, string(rule.Effect))
	}
	if rule.Action == "" && rule.Subject == "" && rule.Target == "" {
		return errors.Newf(errors.CodePolicyLoad,
			"rule %q matches nothing: action, subject and target are all empty", rule.ID)
	}
	for i := range rule.Conditions {
		cond := &rule.Conditions[i]
		builder, known := builders[cond.Name]
		if !known {
			return errors.Newf(errors.CodePolicyLoad,
				"rule %q uses unknown condition %q", rule.ID, cond.Name)
		}
		predicate, err := builder(cond.Params)
		if err != nil {
			return errors.New(errors.CodePolicyLoad,
				fmt.Sprintf("rule %q condition %q", rule.ID, cond.Name), err)
		}
		cond.predicate = predicate
	}
	return nil
}

func buildContextEquals(params map[string]any) (Predicate, error) {
	key, ok := params["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("requires a string %q param", "key")
	}
	want, ok := params["value"]
	if !ok {
		return nil, fmt.Errorf("requires a %q param", "value")
	}
	return func(context map[string]any) bool {
		got, present := context[key]
		return present && fmt.Sprint(got) == fmt.Sprint(want)
	}, nil
}

func buildContextPresent(params map[string]any) (Predicate, error) {
	key, ok := params["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("requires a string %q param", "key")
	}
	return func(context map[string]any) bool {
		_, present := context[key]
		return present
	}, nil
}

func buildSubjectPrefix(params map[string]any) (Predicate, error) {
	prefix, ok := params["prefix"].(string)
	if !ok || prefix == "" {
		return nil, fmt.Errorf("requires a string %q param", "prefix")
	}
	return func(context map[string]any) bool {
		subject, _ := context["subject"].(string)
		return strings.HasPrefix(subject, prefix)
	}, nil
}

func buildMaxInputBytes(params map[string]any) (Predicate, error) {
	limit, err := intParam(params, "limit")
	if err != nil {
		return nil, err
	}
	return func(context map[string]any) bool {
		size, err := intValue(context["input_bytes"])
		if err != nil {
			return false
		}
		return size <= limit
	}, nil
}

func intParam(params map[string]any, name string) (int, error) {
	value, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("requires an integer %q param", name)
	}
	n, err := intValue(value)
	if err != nil {
		return 0, fmt.Errorf("param %q: %w", name, err)
	}
	return n, nil
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("value %v is not an integer", v)
	}
}
