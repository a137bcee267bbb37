package policy

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Engine evaluates policy decisions using the built-in CRITICAL/SUPERADMIN
// pattern table, with an optional embedded-OPA overlay for custom Rego
// policy layered on top.
type Engine struct {
	compiled  *CompiledPolicy
	query     rego.PreparedEvalQuery
	hasRego   bool
	policy    *Policy
	policyVer string
	mu        sync.RWMutex
}

// NewEngine creates a policy engine from a policy directory. The directory
// may contain a policy.yaml (merged on top of DefaultPolicy()) and any
// number of *.rego files providing a custom overlay.
func NewEngine(policyDir string) (*Engine, error) {
	e := &Engine{}
	if err := e.loadFromDir(policyDir); err != nil {
		return nil, fmt.Errorf("initializing policy engine: %w", err)
	}
	slog.Info("policy engine initialized", "policy_dir", policyDir, "version", e.policyVer)
	return e, nil
}

// NewEngineFromPolicy creates an engine from an already-merged effective
// policy and Rego overlay files in policyDir.
func NewEngineFromPolicy(effectivePolicy *Policy, policyDir string) (*Engine, error) {
	e := &Engine{policy: effectivePolicy}

	compiled, err := CompilePolicy(effectivePolicy)
	if err != nil {
		return nil, fmt.Errorf("compiling effective policy: %w", err)
	}
	e.compiled = compiled

	regoFiles, err := findRegoFiles(policyDir)
	if err != nil {
		return nil, fmt.Errorf("finding rego files: %w", err)
	}
	if err := e.prepareQuery(regoFiles); err != nil {
		return nil, fmt.Errorf("preparing OPA query: %w", err)
	}

	e.policyVer = hashPolicy(effectivePolicy)
	slog.Info("policy engine initialized from effective policy", "version", e.policyVer)
	return e, nil
}

// CheckCritical is the cheap, no-OPA CRITICAL lookup the router consults
// before anything else (spec 4.5 check_critical).
func (e *Engine) CheckCritical(operation string) *PatternRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.compiled.CheckCritical(operation)
}

// CheckSuperAdmin is the cheap, no-OPA SUPERADMIN lookup (spec 4.5 check_superadmin).
func (e *Engine) CheckSuperAdmin(operation string) *PatternRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.compiled.CheckSuperAdmin(operation)
}

// Evaluate runs the full decision pipeline for the given input: built-in
// tiers first, then any custom Rego overlay for operations the built-in
// table does not already classify.
func (e *Engine) Evaluate(ctx context.Context, input PolicyInput) (*DecisionResult, error) {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &DecisionResult{
		PolicyVer: e.policyVer,
		InputHash: hashInput(input),
		Timestamp: start,
	}

	if rule := e.compiled.CheckCritical(input.Operation); rule != nil {
		fillResult(result, rule, TierCritical)
		result.Duration = time.Since(start)
		return result, nil
	}
	if rule := e.compiled.CheckSuperAdmin(input.Operation); rule != nil {
		fillResult(result, rule, TierSuperAdmin)
		result.Duration = time.Since(start)
		return result, nil
	}

	if e.hasRego {
		if err := e.evaluateOPA(ctx, input, result); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func fillResult(result *DecisionResult, rule *PatternRule, tier Tier) {
	result.Matched = true
	result.Tier = tier
	result.Rule = rule.Name
	result.Reason = rule.Reason
}

// Reload replaces the engine's policy table and Rego overlay from the given directory.
func (e *Engine) Reload(policyDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loadFromDir(policyDir); err != nil {
		return fmt.Errorf("reloading policy engine: %w", err)
	}
	slog.Info("policy engine reloaded", "policy_dir", policyDir, "version", e.policyVer)
	return nil
}

// EffectivePolicy returns the current effective merged policy.
func (e *Engine) EffectivePolicy() *Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// loadFromDir loads the policy table and Rego overlay from a directory.
func (e *Engine) loadFromDir(dir string) error {
	regoFiles, err := findRegoFiles(dir)
	if err != nil {
		return fmt.Errorf("finding rego files in %s: %w", dir, err)
	}
	if err := e.prepareQuery(regoFiles); err != nil {
		return fmt.Errorf("preparing OPA query: %w", err)
	}

	policyPath := filepath.Join(dir, "policy.yaml")
	effective := DefaultPolicy()
	if _, statErr := os.Stat(policyPath); statErr == nil {
		p, loadErr := LoadPolicy(policyPath)
		if loadErr != nil {
			return fmt.Errorf("loading policy from %s: %w", policyPath, loadErr)
		}
		effective.Rules = append(effective.Rules, p.Rules...)
		if p.Version > 0 {
			effective.Version = p.Version
		}
	}

	compiled, err := CompilePolicy(effective)
	if err != nil {
		return fmt.Errorf("compiling policy table: %w", err)
	}

	e.policy = effective
	e.compiled = compiled
	e.policyVer = hashPolicy(effective)
	return nil
}

// prepareQuery compiles Rego source files into a prepared evaluation query.
func (e *Engine) prepareQuery(regoFiles map[string]string) error {
	if len(regoFiles) == 0 {
		e.hasRego = false
		return nil
	}

	opts := []func(*rego.Rego){rego.Query("data.wowguard")}
	for name, src := range regoFiles {
		opts = append(opts, rego.Module(name, src))
	}

	r := rego.New(opts...)
	pq, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("preparing OPA query: %w", err)
	}

	e.query = pq
	e.hasRego = true
	return nil
}

// evaluateOPA runs the prepared OPA query against the given input, for sites
// layering custom policy on top of the built-in CRITICAL/SUPERADMIN tiers.
func (e *Engine) evaluateOPA(ctx context.Context, input PolicyInput, result *DecisionResult) error {
	inputMap, err := structToMap(input)
	if err != nil {
		return fmt.Errorf("converting input to map: %w", err)
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return fmt.Errorf("evaluating OPA query: %w", err)
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil
	}

	resultMap, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return nil
	}

	tierStr, _ := resultMap["tier"].(string)
	switch Tier(tierStr) {
	case TierCritical, TierSuperAdmin:
		result.Matched = true
		result.Tier = Tier(tierStr)
		result.Rule = "opa-overlay"
		if name, ok := resultMap["rule"].(string); ok && name != "" {
			result.Rule = name
		}
		result.Reason = "matched custom Rego overlay policy"
		if reason, ok := resultMap["reason"].(string); ok && reason != "" {
			result.Reason = reason
		}
	}

	return nil
}

// findRegoFiles discovers all .rego files under the given directory.
func findRegoFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return files, nil
	}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", path, readErr)
		}
		relPath, _ := filepath.Rel(dir, path)
		files[relPath] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// structToMap converts a struct to a map[string]interface{} via JSON round-trip.
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// hashInput produces the hex form of the first 8 bytes of the input's
// SHA-256 digest, for audit logging.
func hashInput(input PolicyInput) string {
	data, _ := json.Marshal(input)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

// hashPolicy produces the hex form of the first 8 bytes of the effective
// policy's SHA-256 digest, for versioning.
func hashPolicy(p *Policy) string {
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}
