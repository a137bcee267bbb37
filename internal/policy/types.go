package policy

import "time"

// Tier classifies a pattern rule by how strongly it resists privilege escalation.
type Tier string

const (
	// TierSuperAdmin rules reject unless SuperAdmin privilege is active.
	TierSuperAdmin Tier = "superadmin"
	// TierCritical rules reject regardless of any active privilege.
	TierCritical Tier = "critical"
)

// tierLevel orders tiers for tighten-only merge comparisons. Higher is stricter.
var tierLevel = map[Tier]int{
	TierSuperAdmin: 1,
	TierCritical:   2,
}

// PatternRule is a single declarative (pattern, tier, reason) entry in the
// policy table.
type PatternRule struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"` // regex matched against the operation string
	Tier    Tier   `yaml:"tier" json:"tier"`
	Reason  string `yaml:"reason" json:"reason"`
}

// Policy is the top-level policy document loaded from YAML.
type Policy struct {
	Version int           `yaml:"version"`
	Rules   []PatternRule `yaml:"rules"`
}

// PolicyInput is the evaluation input passed to the policy engine.
type PolicyInput struct {
	Tool      string         `json:"tool"`
	Operation string         `json:"operation"` // command/path/pattern/url, depending on tool
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DecisionResult is the output of a policy table evaluation.
type DecisionResult struct {
	Matched   bool          `json:"matched"`
	Tier      Tier          `json:"tier,omitempty"`
	Rule      string        `json:"rule"`
	Reason    string        `json:"reason"`
	PolicyVer string        `json:"policy_version"`
	InputHash string        `json:"input_hash"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ms"`
}
