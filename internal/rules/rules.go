// Package rules implements the custom rule engine spec 4.11 describes: a
// user-loaded file of declarative rules that handlers consult before their
// built-in checks. Grounded on the teacher's internal/mcppacks and
// internal/toolpacks manifest-loading pattern (YAML load + Validate).
package rules

import (
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"go.yaml.in/yaml/v3"
)

// Action is what a matched rule does to the tool request.
type Action string

const (
	ActionAllow Action = "allow"
	ActionWarn  Action = "warn"
	ActionBlock Action = "block"
)

// Rule is one declarative entry in the rule file.
type Rule struct {
	Name       string `yaml:"name" json:"name"`
	Pattern    string `yaml:"pattern" json:"pattern"`
	ToolFilter string `yaml:"tool_filter,omitempty" json:"tool_filter,omitempty"`
	Action     Action `yaml:"action" json:"action"`
	Severity   string `yaml:"severity,omitempty" json:"severity,omitempty"`
	Message    string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Validate checks that a rule has all fields required to be evaluated.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule: name is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule: pattern is required for rule %q", r.Name)
	}
	switch r.Action {
	case ActionAllow, ActionWarn, ActionBlock:
	default:
		return fmt.Errorf("rule %q: action must be allow, warn, or block, got %q", r.Name, r.Action)
	}
	return nil
}

// File is the top-level shape of a rule file on disk.
type File struct {
	Rules []Rule `yaml:"rules"`
}

// compiledRule pairs a Rule with its pre-compiled glob matchers.
type compiledRule struct {
	rule        Rule
	pattern     glob.Glob
	toolFilter  glob.Glob
	hasToolFilter bool
}

// Engine evaluates tool operations against a loaded, compiled rule set,
// first-match-wins, in file order.
type Engine struct {
	compiled []compiledRule
}

// Load reads a rule file from disk, validates every rule, and compiles its
// glob patterns.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rule file %s: %w", path, err)
	}
	return NewEngine(f.Rules)
}

// NewEngine validates and compiles an in-memory rule set.
func NewEngine(rules []Rule) (*Engine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		pg, err := glob.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid pattern %q: %w", r.Name, r.Pattern, err)
		}
		cr := compiledRule{rule: r, pattern: pg}
		if r.ToolFilter != "" {
			tg, err := glob.Compile(r.ToolFilter)
			if err != nil {
				return nil, fmt.Errorf("rule %q: invalid tool_filter %q: %w", r.Name, r.ToolFilter, err)
			}
			cr.toolFilter = tg
			cr.hasToolFilter = true
		}
		compiled = append(compiled, cr)
	}
	return &Engine{compiled: compiled}, nil
}

// Len reports how many rules the engine compiled.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.compiled)
}

// Evaluate implements router.RuleEngine: it returns the action and message
// of the first rule whose tool_filter (if any) and pattern both match,
// first-match-wins in file order.
func (e *Engine) Evaluate(tool, operation string) (action, reason string, matched bool) {
	if e == nil {
		return "", "", false
	}
	for _, cr := range e.compiled {
		if cr.hasToolFilter && !cr.toolFilter.Match(tool) {
			continue
		}
		if !cr.pattern.Match(operation) {
			continue
		}
		reason = cr.rule.Message
		if reason == "" {
			reason = "matched custom rule " + cr.rule.Name
		}
		return string(cr.rule.Action), reason, true
	}
	return "", "", false
}
