package policy

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CriticalBlockError is returned when an operation matches a CRITICAL rule.
// CRITICAL blocks are never bypassable by any privilege mode.
type CriticalBlockError struct {
	Operation string
	Rule      string
	Reason    string
}

func (e *CriticalBlockError) Error() string {
	return fmt.Sprintf("CRITICAL: %s (rule %q): %s", e.Operation, e.Rule, e.Reason)
}

// SuperAdminRequiredError is returned when an operation matches a SUPERADMIN
// rule and SuperAdmin privilege is not currently active.
type SuperAdminRequiredError struct {
	Operation string
	Rule      string
	Reason    string
}

func (e *SuperAdminRequiredError) Error() string {
	return fmt.Sprintf("SUPERADMIN required: %s (rule %q): %s", e.Operation, e.Rule, e.Reason)
}

// PolicyGate wraps an Engine with decision logging. The router consults it
// once per request, before the privilege manager and the rest of the
// pipeline (spec 4.9 steps 3-4).
type PolicyGate struct {
	engine    *Engine
	logger    *DecisionLogger
	sessionID string
	mu        sync.RWMutex
}

// NewPolicyGate creates a policy gate over the given engine and decision logger.
func NewPolicyGate(engine *Engine, logger *DecisionLogger, sessionID string) *PolicyGate {
	return &PolicyGate{engine: engine, logger: logger, sessionID: sessionID}
}

// Evaluate checks an operation against the policy table and logs the decision.
func (g *PolicyGate) Evaluate(ctx context.Context, tool, operation string) (*DecisionResult, error) {
	start := time.Now()

	input := PolicyInput{
		Tool:      tool,
		Operation: operation,
		SessionID: g.sessionID,
		Timestamp: start,
	}

	result, err := g.engine.Evaluate(ctx, input)
	if err != nil {
		return nil, err
	}

	if g.logger != nil {
		_ = g.logger.Log(EntryFromResult(input, *result))
	}

	return result, nil
}

// EvaluateAndEnforce evaluates and returns a typed error for CRITICAL and
// SUPERADMIN matches, or nil when clear. superAdminActive reflects the
// current state of the superadmin privilege (spec 4.9 step 4).
func (g *PolicyGate) EvaluateAndEnforce(ctx context.Context, tool, operation string, superAdminActive bool) error {
	result, err := g.Evaluate(ctx, tool, operation)
	if err != nil {
		return err
	}

	if !result.Matched {
		return nil
	}

	switch result.Tier {
	case TierCritical:
		return &CriticalBlockError{Operation: operation, Rule: result.Rule, Reason: result.Reason}
	case TierSuperAdmin:
		if superAdminActive {
			return nil
		}
		return &SuperAdminRequiredError{Operation: operation, Rule: result.Rule, Reason: result.Reason}
	default:
		return nil
	}
}

// UpdatePolicy hot-reloads the underlying engine's policy.
func (g *PolicyGate) UpdatePolicy(p *Policy) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	compiled, err := CompilePolicy(p)
	if err != nil {
		return fmt.Errorf("compiling updated policy: %w", err)
	}
	g.engine.mu.Lock()
	g.engine.policy = p
	g.engine.compiled = compiled
	g.engine.policyVer = hashPolicy(p)
	g.engine.mu.Unlock()
	return nil
}
