package config

import (
	"fmt"
	"strings"
)

// ValidationIssue describes a single validation problem.
type ValidationIssue struct {
	Field   string // dotted config path, e.g. "scoring.threshold_warn"
	Value   string // the invalid value as a string
	Message string // human-readable description
}

func (i ValidationIssue) String() string {
	if i.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", i.Field, i.Message, i.Value)
	}
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// ValidationResult collects errors and warnings from config validation.
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

// String returns a formatted summary of all errors and warnings.
func (r *ValidationResult) String() string {
	if !r.HasErrors() && !r.HasWarnings() {
		return "config validation passed"
	}
	var b strings.Builder
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "ERROR  %s\n", e.String())
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "WARN   %s\n", w.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *ValidationResult) addError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Field: field, Value: value, Message: message})
}

func (r *ValidationResult) addWarning(field, value, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Field: field, Value: value, Message: message})
}

// Validate checks cfg against all known rules and returns a ValidationResult.
func Validate(cfg *Config) *ValidationResult {
	r := &ValidationResult{}

	if cfg.Scoring.ThresholdWarn < 0 || cfg.Scoring.ThresholdWarn > 100 {
		r.addError("scoring.threshold_warn", fmt.Sprintf("%d", cfg.Scoring.ThresholdWarn), "must be between 0 and 100")
	}
	if cfg.Scoring.ThresholdBlock < 0 || cfg.Scoring.ThresholdBlock > 100 {
		r.addError("scoring.threshold_block", fmt.Sprintf("%d", cfg.Scoring.ThresholdBlock), "must be between 0 and 100")
	}
	if cfg.Scoring.ThresholdBlock < cfg.Scoring.ThresholdWarn {
		r.addError("scoring.threshold_block", fmt.Sprintf("%d", cfg.Scoring.ThresholdBlock), "must be >= scoring.threshold_warn")
	}
	if cfg.Scoring.DecayRate < 0 || cfg.Scoring.DecayRate > 1 {
		r.addError("scoring.decay_rate", fmt.Sprintf("%v", cfg.Scoring.DecayRate), "must be between 0 and 1")
	}

	if cfg.Rules.MaxFileOperations < 0 {
		r.addError("rules.max_file_operations", fmt.Sprintf("%d", cfg.Rules.MaxFileOperations), "must be >= 0 (0 means unlimited)")
	}
	if cfg.Rules.MaxBashCommands < 0 {
		r.addError("rules.max_bash_commands", fmt.Sprintf("%d", cfg.Rules.MaxBashCommands), "must be >= 0 (0 means unlimited)")
	}

	if cfg.Privilege.BypassMaxDurationSecs <= 0 {
		r.addError("privilege.bypass_max_duration_secs", fmt.Sprintf("%d", cfg.Privilege.BypassMaxDurationSecs), "must be > 0")
	}
	if cfg.Privilege.SuperAdminMaxDurationSecs <= 0 {
		r.addError("privilege.superadmin_max_duration_secs", fmt.Sprintf("%d", cfg.Privilege.SuperAdminMaxDurationSecs), "must be > 0")
	}
	if cfg.Privilege.BypassInactivityTimeout <= 0 {
		r.addError("privilege.bypass_inactivity_timeout_secs", fmt.Sprintf("%d", cfg.Privilege.BypassInactivityTimeout), "must be > 0")
	}
	if cfg.Privilege.SuperAdminInactivityTimeout <= 0 {
		r.addError("privilege.superadmin_inactivity_timeout_secs", fmt.Sprintf("%d", cfg.Privilege.SuperAdminInactivityTimeout), "must be > 0")
	}

	if cfg.Audit.SampleRate < 0 || cfg.Audit.SampleRate > 1 {
		r.addError("audit.sample_rate", fmt.Sprintf("%v", cfg.Audit.SampleRate), "must be between 0 and 1")
	}
	if cfg.Audit.MaxSizeMB < 0 {
		r.addError("audit.max_size_mb", fmt.Sprintf("%d", cfg.Audit.MaxSizeMB), "must be >= 0")
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		r.addError("logging.format", cfg.Logging.Format, "must be \"text\" or \"json\"")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		r.addError("logging.level", cfg.Logging.Level, "must be \"debug\", \"info\", \"warn\", or \"error\"")
	}

	if cfg.Enforcement.StrictMode && !cfg.Enforcement.Enabled {
		r.addWarning("enforcement.strict_mode", "true", "has no effect while enforcement.enabled is false")
	}
	if !cfg.Privilege.RequireBiometric {
		r.addWarning("privilege.require_biometric", "false", "passphrase-only elevation is weaker than biometric + passphrase")
	}

	return r
}
