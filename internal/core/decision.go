package core

// Kind discriminates the variants of Decision.
type Kind int

const (
	// KindAllow passes the request through, possibly mutated.
	KindAllow Kind = iota
	// KindBlock is a bypassable denial (exit 2).
	KindBlock
	// KindCriticalBlock can never be unlocked by any privilege tier (exit 3).
	KindCriticalBlock
	// KindSuperAdminRequired is unlockable only by the SuperAdmin tier (exit 4).
	KindSuperAdminRequired
)

// Severity tags the human-readable stderr line per spec §6.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityBlocked  Severity = "BLOCKED"
	SeverityWarn     Severity = "WARN"
	SeverityDebug    Severity = "DEBUG"
)

// Decision is the sum-type result of the pipeline.
type Decision struct {
	Kind    Kind
	Reason  string
	Request ToolRequest // populated (possibly mutated) for KindAllow
}

// Allow builds a passthrough decision, optionally with a mutated request.
func Allow(req ToolRequest) Decision {
	return Decision{Kind: KindAllow, Request: req}
}

// Block builds a bypassable denial.
func Block(reason string) Decision {
	return Decision{Kind: KindBlock, Reason: reason}
}

// CriticalBlock builds a denial that no privilege tier can lift.
func CriticalBlock(reason string) Decision {
	return Decision{Kind: KindCriticalBlock, Reason: reason}
}

// SuperAdminRequired builds a denial that only the SuperAdmin tier can lift.
func SuperAdminRequired(reason string) Decision {
	return Decision{Kind: KindSuperAdminRequired, Reason: reason}
}

// ExitCode maps a Decision onto the exit codes specified in spec §6.
func (d Decision) ExitCode() int {
	switch d.Kind {
	case KindAllow:
		return 0
	case KindBlock:
		return 2
	case KindCriticalBlock:
		return 3
	case KindSuperAdminRequired:
		return 4
	default:
		return 2
	}
}

// Severity returns the stderr tag for a decision.
func (d Decision) Severity() Severity {
	switch d.Kind {
	case KindCriticalBlock:
		return SeverityCritical
	case KindBlock, KindSuperAdminRequired:
		return SeverityBlocked
	default:
		return SeverityDebug
	}
}

// RemediationHint returns a one-line hint appended to a block's stderr
// output, per spec §7 "user-visible failure".
func (d Decision) RemediationHint() string {
	switch d.Kind {
	case KindCriticalBlock:
		return "this operation is never permitted; bypass and superadmin privileges do not apply"
	case KindSuperAdminRequired:
		return "activate superadmin privilege to proceed (wow-guard privilege activate --mode=superadmin)"
	case KindBlock:
		return "set strict_mode=false in config to allow with warnings, or request a bypass"
	default:
		return ""
	}
}
