package policy

import "testing"

func testPolicy() *Policy {
	return DefaultPolicy()
}

func TestCompilePolicyCompilesAllPatterns(t *testing.T) {
	cp, err := CompilePolicy(testPolicy())
	if err != nil {
		t.Fatalf("CompilePolicy: %v", err)
	}
	if len(cp.Critical) == 0 {
		t.Error("expected at least one CRITICAL rule in the default policy")
	}
	if len(cp.SuperAdmin) == 0 {
		t.Error("expected at least one SUPERADMIN rule in the default policy")
	}
}

func TestCompilePolicyRejectsInvalidRegex(t *testing.T) {
	p := &Policy{Version: 1, Rules: []PatternRule{
		{Name: "bad", Pattern: "([", Tier: TierCritical, Reason: "x"},
	}}
	if _, err := CompilePolicy(p); err == nil {
		t.Error("expected error compiling invalid regex")
	}
}

func TestCompilePolicyRejectsUnknownTier(t *testing.T) {
	p := &Policy{Version: 1, Rules: []PatternRule{
		{Name: "bad", Pattern: "x", Tier: "unknown", Reason: "x"},
	}}
	if _, err := CompilePolicy(p); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestCheckCriticalMatchesRmRfRoot(t *testing.T) {
	cp, err := CompilePolicy(testPolicy())
	if err != nil {
		t.Fatalf("CompilePolicy: %v", err)
	}
	rule := cp.CheckCritical("rm -rf /")
	if rule == nil {
		t.Fatal("expected rm -rf / to match a CRITICAL rule")
	}
	if rule.Tier != TierCritical {
		t.Errorf("Tier = %q, want critical", rule.Tier)
	}
}

func TestCheckCriticalMatchesForkBomb(t *testing.T) {
	cp, err := CompilePolicy(testPolicy())
	if err != nil {
		t.Fatalf("CompilePolicy: %v", err)
	}
	if cp.CheckCritical(":(){ :|:& };:") == nil {
		t.Error("expected fork bomb pattern to match a CRITICAL rule")
	}
}

func TestCheckSuperAdminMatchesUseradd(t *testing.T) {
	cp, err := CompilePolicy(testPolicy())
	if err != nil {
		t.Fatalf("CompilePolicy: %v", err)
	}
	rule := cp.CheckSuperAdmin("useradd bob")
	if rule == nil {
		t.Fatal("expected useradd to match a SUPERADMIN rule")
	}
	if rule.Tier != TierSuperAdmin {
		t.Errorf("Tier = %q, want superadmin", rule.Tier)
	}
}

func TestCheckCriticalNoMatchReturnsNil(t *testing.T) {
	cp, err := CompilePolicy(testPolicy())
	if err != nil {
		t.Fatalf("CompilePolicy: %v", err)
	}
	if cp.CheckCritical("ls -la") != nil {
		t.Error("ls -la should not match any CRITICAL rule")
	}
}

func TestCheckCriticalNilCompiledPolicy(t *testing.T) {
	var cp *CompiledPolicy
	if cp.CheckCritical("rm -rf /") != nil {
		t.Error("nil CompiledPolicy should report no match")
	}
}

func TestFirstMatchWins(t *testing.T) {
	p := &Policy{Version: 1, Rules: []PatternRule{
		{Name: "first", Pattern: "danger", Tier: TierCritical, Reason: "first"},
		{Name: "second", Pattern: "danger", Tier: TierCritical, Reason: "second"},
	}}
	cp, err := CompilePolicy(p)
	if err != nil {
		t.Fatalf("CompilePolicy: %v", err)
	}
	rule := cp.CheckCritical("this is danger")
	if rule == nil || rule.Name != "first" {
		t.Errorf("expected first matching rule to win, got %+v", rule)
	}
}
