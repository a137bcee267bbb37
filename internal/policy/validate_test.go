package policy

import "testing"

func validPolicy() *Policy {
	return &Policy{
		Version: 1,
		Rules: []PatternRule{
			{Name: "rule-one", Pattern: "danger", Tier: TierCritical, Reason: "test"},
		},
	}
}

func TestValidatePolicyValid(t *testing.T) {
	if errs := ValidatePolicy(validPolicy()); len(errs) != 0 {
		t.Errorf("expected no errors, got %+v", errs)
	}
}

func TestValidatePolicyRejectsVersionZero(t *testing.T) {
	p := validPolicy()
	p.Version = 0
	errs := ValidatePolicy(p)
	if len(errs) == 0 {
		t.Error("expected an error for version < 1")
	}
}

func TestValidatePolicyRejectsMissingName(t *testing.T) {
	p := &Policy{Version: 1, Rules: []PatternRule{
		{Pattern: "danger", Tier: TierCritical, Reason: "test"},
	}}
	errs := ValidatePolicy(p)
	if len(errs) == 0 {
		t.Error("expected an error for missing rule name")
	}
}

func TestValidatePolicyRejectsDuplicateName(t *testing.T) {
	p := &Policy{Version: 1, Rules: []PatternRule{
		{Name: "dup", Pattern: "a", Tier: TierCritical, Reason: "x"},
		{Name: "dup", Pattern: "b", Tier: TierCritical, Reason: "y"},
	}}
	errs := ValidatePolicy(p)
	found := false
	for _, e := range errs {
		if e.Field == "rules[1].name" {
			found = true
		}
	}
	if !found {
		t.Error("expected duplicate name error at rules[1].name")
	}
}

func TestValidatePolicyRejectsInvalidRegex(t *testing.T) {
	p := &Policy{Version: 1, Rules: []PatternRule{
		{Name: "bad", Pattern: "([", Tier: TierCritical, Reason: "test"},
	}}
	errs := ValidatePolicy(p)
	if len(errs) == 0 {
		t.Error("expected an error for invalid regex")
	}
}

func TestValidatePolicyRejectsUnknownTier(t *testing.T) {
	p := &Policy{Version: 1, Rules: []PatternRule{
		{Name: "bad", Pattern: "x", Tier: "unknown", Reason: "test"},
	}}
	errs := ValidatePolicy(p)
	if len(errs) == 0 {
		t.Error("expected an error for unknown tier")
	}
}

func TestValidatePolicyRejectsMissingReason(t *testing.T) {
	p := &Policy{Version: 1, Rules: []PatternRule{
		{Name: "bad", Pattern: "x", Tier: TierCritical},
	}}
	errs := ValidatePolicy(p)
	if len(errs) == 0 {
		t.Error("expected an error for missing reason")
	}
}

func TestValidateMergePropagatesFieldPrefixes(t *testing.T) {
	org := validPolicy()
	org.Version = 0

	errs := ValidateMerge(org, nil, nil)
	found := false
	for _, e := range errs {
		if e.Field == "org.version" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected org.version error, got %+v", errs)
	}
}

func TestValidateMergeDetectsLoosenViolation(t *testing.T) {
	org := validPolicy()
	team := &Policy{Version: 1, Rules: []PatternRule{
		{Name: "rule-one", Pattern: "danger", Tier: TierSuperAdmin, Reason: "loosened"},
	}}

	errs := ValidateMerge(org, team, nil)
	found := false
	for _, e := range errs {
		if e.Field == "merge" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a merge violation error, got %+v", errs)
	}
}
