package policy

import (
	"fmt"
	"regexp"
)

// CompiledRule pairs a pattern rule with its precompiled regex.
type CompiledRule struct {
	Rule  PatternRule
	Regex *regexp.Regexp
}

// CompiledPolicy is a Policy with every pattern precompiled and split by tier,
// so that check_critical/check_superadmin are O(#patterns) regex scans with
// no allocation beyond the match itself.
type CompiledPolicy struct {
	Version    int
	Critical   []CompiledRule
	SuperAdmin []CompiledRule
}

// CompilePolicy precompiles every rule pattern in p. An invalid regex fails
// the whole policy load rather than silently dropping a rule.
func CompilePolicy(p *Policy) (*CompiledPolicy, error) {
	cp := &CompiledPolicy{Version: p.Version}
	for _, r := range p.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q for rule %q: %w", r.Pattern, r.Name, err)
		}
		cr := CompiledRule{Rule: r, Regex: re}
		switch r.Tier {
		case TierCritical:
			cp.Critical = append(cp.Critical, cr)
		case TierSuperAdmin:
			cp.SuperAdmin = append(cp.SuperAdmin, cr)
		default:
			return nil, fmt.Errorf("rule %q has unknown tier %q", r.Name, r.Tier)
		}
	}
	return cp, nil
}

// FindMatch returns the first rule whose pattern matches operation, or nil.
func FindMatch(rules []CompiledRule, operation string) *PatternRule {
	for i := range rules {
		if rules[i].Regex.MatchString(operation) {
			return &rules[i].Rule
		}
	}
	return nil
}

// CheckCritical returns the matching CRITICAL rule, if any (spec 4.5 check_critical).
func (cp *CompiledPolicy) CheckCritical(operation string) *PatternRule {
	if cp == nil {
		return nil
	}
	return FindMatch(cp.Critical, operation)
}

// CheckSuperAdmin returns the matching SUPERADMIN rule, if any (spec 4.5 check_superadmin).
func (cp *CompiledPolicy) CheckSuperAdmin(operation string) *PatternRule {
	if cp == nil {
		return nil
	}
	return FindMatch(cp.SuperAdmin, operation)
}

// ruleKey produces a comparable key for a rule, used for merge/index lookups.
func ruleKey(r PatternRule) string {
	return r.Name
}
