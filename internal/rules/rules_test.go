package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewEngineRejectsInvalidAction(t *testing.T) {
	_, err := NewEngine([]Rule{{Name: "bad", Pattern: "*", Action: "maybe"}})
	if err == nil {
		t.Fatalf("expected error for invalid action")
	}
}

func TestNewEngineRejectsEmptyPattern(t *testing.T) {
	_, err := NewEngine([]Rule{{Name: "bad", Action: ActionWarn}})
	if err == nil {
		t.Fatalf("expected error for empty pattern")
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	engine, err := NewEngine([]Rule{
		{Name: "block-tmp", Pattern: "/tmp/**", ToolFilter: "Write", Action: ActionBlock, Message: "no tmp writes"},
		{Name: "allow-all-write", Pattern: "*", ToolFilter: "Write", Action: ActionAllow},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	action, reason, matched := engine.Evaluate("Write", "/tmp/evil.sh")
	if !matched || action != "block" || reason != "no tmp writes" {
		t.Fatalf("expected first matching rule to block, got action=%q reason=%q matched=%v", action, reason, matched)
	}
}

func TestEvaluateRespectsToolFilter(t *testing.T) {
	engine, err := NewEngine([]Rule{
		{Name: "bash-only", Pattern: "*", ToolFilter: "Bash", Action: ActionWarn, Message: "bash warn"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, matched := engine.Evaluate("Write", "anything")
	if matched {
		t.Fatalf("expected tool_filter to exclude non-matching tool")
	}
	action, _, matched := engine.Evaluate("Bash", "anything")
	if !matched || action != "warn" {
		t.Fatalf("expected bash tool to match warn rule")
	}
}

func TestEvaluateNoMatchReturnsFalse(t *testing.T) {
	engine, err := NewEngine([]Rule{{Name: "r1", Pattern: "specific-pattern", Action: ActionBlock}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, matched := engine.Evaluate("Write", "unrelated")
	if matched {
		t.Fatalf("expected no match")
	}
}

func TestLoadReadsAndCompilesRuleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	contents := "rules:\n  - name: deny-shadow\n    pattern: \"*shadow*\"\n    action: block\n    message: \"no shadow reads\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	engine, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	action, reason, matched := engine.Evaluate("Read", "/etc/shadow")
	if !matched || action != "block" || reason != "no shadow reads" {
		t.Fatalf("expected loaded rule to match, got action=%q reason=%q matched=%v", action, reason, matched)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: ["), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
