package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/axon-sh/axon/pkg/errors"
)

// ruleFile is the on-disk shape of a policy rule file.
type ruleFile struct {
	Name  string     `yaml:"name" json:"name"`
	Rules []fileRule `yaml:"rules" json:"rules"`
}

type fileRule struct {
	ID         string          `yaml:"id" json:"id"`
	Action     string          `yaml:"action" json:"action"`
	Subject    string          `yaml:"subject" json:"subject"`
	Target     string          `yaml:"target" json:"target"`
	Effect     string          `yaml:"effect" json:"effect"`
	Reason     string          `yaml:"reason" json:"reason"`
	Conditions []fileCondition `yaml:"conditions" json:"conditions"`
}

type fileCondition struct {
	Name   string         `yaml:"name" json:"name"`
	Params map[string]any `yaml:"params" json:"params"`
}

// LoadFile loads a rule set from a YAML or JSON policy file. The load is
// atomic: one malformed rule fails the whole file and no partial set is
// returned.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodePolicyLoad, "read policy file "+path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(data, filepath.Base(path))
	default:
		return ParseYAML(data, filepath.Base(path))
	}
}

// LoadFiles loads and concatenates several policy files into one rule set,
// preserving file order then rule order. Any failing file fails the load.
func LoadFiles(paths []string) (*RuleSet, error) {
	if len(paths) == 0 {
		return EmptyRuleSet(), nil
	}
	var rules []Rule
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		rs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		names = append(names, rs.Name())
		rules = append(rules, rs.rules...)
	}
	return NewRuleSet(strings.Join(names, "+"), rules)
}

// ParseYAML loads a rule set from YAML.
func ParseYAML(data []byte, name string) (*RuleSet, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.New(errors.CodePolicyLoad, "parse yaml policy", err)
	}
	return ruleSetFromFile(file, name)
}

// ParseJSON loads a rule set from JSON.
func ParseJSON(data []byte, name string) (*RuleSet, error) {
	var file ruleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.New(errors.CodePolicyLoad, "parse json policy", err)
	}
	return ruleSetFromFile(file, name)
}

func ruleSetFromFile(file ruleFile, fallbackName string) (*RuleSet, error) {
	name := file.Name
	if name == "" {
		name = fallbackName
	}
	rules := make([]Rule, 0, len(file.Rules))
	for _, fr := range file.Rules {
		rule := Rule{
			ID:      fr.ID,
			Action:  fr.Action,
			Subject: fr.Subject,
			Target:  fr.Target,
			Effect:  Effect(strings.ToLower(strings.TrimSpace(fr.Effect))),
			Reason:  fr.Reason,
		}
		for _, fc := range fr.Conditions {
			rule.Conditions = append(rule.Conditions, Condition{
				Name:   fc.Name,
				Params: fc.Params,
			})
		}
		rules = append(rules, rule)
	}
	return NewRuleSet(name, rules)
}
