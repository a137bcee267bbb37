package audit

import (
	"encoding/json"
	"time"
)

// EventType classifies audit events emitted by the interception
// pipeline (router, policy engine, privilege manager, heuristic
// detector, correlator).
type EventType string

const (
	// Session lifecycle.
	EventSessionStart EventType = "session.start"
	EventSessionEnd   EventType = "session.end"

	// Tool invocation outcomes — one per handle() call.
	EventToolInvoke            EventType = "tool.invoke"
	EventToolAllow             EventType = "tool.allow"
	EventToolBlock             EventType = "tool.block"
	EventToolCriticalBlock     EventType = "tool.critical_block"
	EventToolSuperAdminRequired EventType = "tool.superadmin_required"

	// Policy tier matches.
	EventPolicyCriticalMatch   EventType = "policy.critical_match"
	EventPolicySuperAdminMatch EventType = "policy.superadmin_match"
	EventPolicyReload          EventType = "policy.reload"

	// Privilege elevation lifecycle.
	EventPrivilegeActivate   EventType = "privilege.activate"
	EventPrivilegeDeactivate EventType = "privilege.deactivate"
	EventPrivilegeFailure    EventType = "privilege.failure"
	EventPrivilegeLockout    EventType = "privilege.lockout"
	EventPrivilegeExpired    EventType = "privilege.expired"

	// Detection findings.
	EventHeuristicFinding  EventType = "heuristic.finding"
	EventCorrelatorFinding EventType = "correlator.finding"

	// Custom rule engine.
	EventRuleMatch EventType = "rule.match"
)

// Severity levels for audit events, ordered by severity.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Source identifies the pipeline stage that generated the event.
type Source string

const (
	SourceRouter      Source = "router"
	SourceFastPath    Source = "fastpath"
	SourcePolicy      Source = "policy"
	SourcePrivilege   Source = "privilege"
	SourceHeuristic   Source = "heuristic"
	SourceCorrelator  Source = "correlator"
	SourceHandler     Source = "handler"
	SourceRuleEngine  Source = "rules"
	SourceCLI         Source = "cli"
)

// AuditEvent is the common event schema for every audit log entry. The
// HashPrev field links events into a tamper-evident hash chain.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType EventType      `json:"event_type"`
	SessionID string         `json:"session_id"`
	Tool      string         `json:"tool,omitempty"`
	Source    Source         `json:"source"`
	Severity  Severity       `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
	HashPrev  string         `json:"hash_prev"`
}

// MarshalJSON implements json.Marshaler with RFC 3339 timestamps.
func (e AuditEvent) MarshalJSON() ([]byte, error) {
	type Alias AuditEvent
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *AuditEvent) UnmarshalJSON(data []byte) error {
	type Alias AuditEvent
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = t
	return nil
}

// Validate checks that all required fields are populated.
func (e *AuditEvent) Validate() error {
	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if e.EventType == "" {
		return ErrMissingEventType
	}
	if e.SessionID == "" {
		return ErrMissingSessionID
	}
	if e.Source == "" {
		return ErrMissingSource
	}
	if e.Severity == "" {
		return ErrMissingSeverity
	}
	return nil
}

// Sampleable reports whether this event's severity is eligible for
// sample-rate-based dropping. CRITICAL and HIGH events are always
// logged in full; only routine INFO/WARNING volume is ever sampled
// (spec §7: security decisions are never silently dropped).
func (e *AuditEvent) Sampleable() bool {
	return e.Severity == SeverityInfo || e.Severity == SeverityWarning
}
