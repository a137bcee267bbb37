package policy

import (
	"fmt"
	"log/slog"
	"strings"
)

// MergeError reports one or more tighten-only violations during policy merge.
type MergeError struct {
	Violations []string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("policy merge violations:\n  - %s", strings.Join(e.Violations, "\n  - "))
}

// MergePolicies combines org, team, and project policy tables using
// tighten-only semantics. Team and project may be nil. A child rule sharing
// a parent's name may only raise its tier (superadmin -> critical), never
// lower it or remove the parent's rule; new rule names are always accepted,
// since adding a restriction only tightens the effective policy.
func MergePolicies(org, team, project *Policy) (*Policy, error) {
	if org == nil {
		return nil, fmt.Errorf("org policy is required")
	}

	result := deepCopyPolicy(org)
	var violations []string

	if team != nil {
		violations = append(violations, mergeInto(result, team)...)
	}
	if project != nil {
		violations = append(violations, mergeInto(result, project)...)
	}

	if len(violations) > 0 {
		return nil, &MergeError{Violations: violations}
	}

	slog.Debug("policy merge completed", "version", result.Version, "rules", len(result.Rules))
	return result, nil
}

// mergeInto merges a child policy into the current effective policy (parent).
// Returns a list of tighten-only violations.
func mergeInto(parent, child *Policy) []string {
	var violations []string

	idx := make(map[string]int, len(parent.Rules))
	for i, r := range parent.Rules {
		idx[ruleKey(r)] = i
	}

	for _, childRule := range child.Rules {
		key := ruleKey(childRule)
		i, exists := idx[key]
		if !exists {
			parent.Rules = append(parent.Rules, childRule)
			idx[key] = len(parent.Rules) - 1
			continue
		}

		parentRule := parent.Rules[i]
		if tierLevel[childRule.Tier] < tierLevel[parentRule.Tier] {
			violations = append(violations, fmt.Sprintf(
				"rules: rule %q attempts to loosen tier from %q to %q",
				key, parentRule.Tier, childRule.Tier))
			continue
		}

		parent.Rules[i] = childRule
	}

	return violations
}

// deepCopyPolicy returns a deep copy of the given policy.
func deepCopyPolicy(p *Policy) *Policy {
	cp := &Policy{Version: p.Version}
	if len(p.Rules) > 0 {
		cp.Rules = make([]PatternRule, len(p.Rules))
		copy(cp.Rules, p.Rules)
	}
	return cp
}
