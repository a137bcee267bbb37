// Package handlers implements the per-tool validators the router dispatches
// to once the policy/heuristic/correlator layers have cleared a request.
// Grounded on the teacher's internal/mounts/validate.go (path validation),
// internal/network/{nftables,coredns}.go (allow/deny list matching idiom,
// generalized to WebFetch/WebSearch SSRF checks), and internal/mcppacks
// /validate.go (manifest-shaped validation returning a result struct).
package handlers

import (
	"strconv"
	"time"

	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// Severity is the finding strength a handler's check produces, independent
// of whether it currently escalates to a block.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarn
	SeverityBlock
)

// Config is shared, injected configuration every handler consults.
type Config struct {
	StrictMode        bool
	BlockOnViolation  bool
	MaxFileOperations int // 0 = unlimited
	MaxBashCommands   int // 0 = unlimited
	AuthorFull        string
	EmojiSet          []string
	CredentialPatterns []CredentialPattern
}

// ShouldBlock escalates a warning to a block in strict mode, mirroring the
// shared should_block(severity) helper spec 4.10 names.
func (c Config) ShouldBlock(sev Severity) bool {
	switch sev {
	case SeverityBlock:
		return true
	case SeverityWarn:
		return c.StrictMode || c.BlockOnViolation
	default:
		return false
	}
}

// verdict turns a severity into the router's HandlerVerdict, applying the
// should_block escalation.
func (c Config) verdict(sev Severity, reason string) router.HandlerVerdict {
	switch {
	case sev == SeverityNone:
		return router.HandlerVerdict{}
	case c.ShouldBlock(sev):
		return router.HandlerVerdict{Blocked: true, Reason: reason}
	default:
		return router.HandlerVerdict{Warn: true, Reason: reason}
	}
}

// trackOperation increments the shared per-tool operation metric and
// records a `<tool>_operation` session event, per spec 4.10's shared
// handler protocol.
func trackOperation(s *session.State, tool string) {
	if s == nil {
		return
	}
	s.Increment("metrics:"+tool+"_operation_count", 1)
	s.TrackEvent(tool+"_operation", "")
}

// fileOperationCount returns the combined write+edit operation count so far.
func fileOperationCount(s *session.State) int64 {
	if s == nil {
		return 0
	}
	writes, _ := strconv.ParseInt(s.Get("metrics:Write_operation_count", "0"), 10, 64)
	edits, _ := strconv.ParseInt(s.Get("metrics:Edit_operation_count", "0"), 10, 64)
	return writes + edits
}

// readCount returns the number of prior Read operations tracked this session.
func readCount(s *session.State) int64 {
	if s == nil {
		return 0
	}
	n, _ := strconv.ParseInt(s.Get("metrics:Read_operation_count", "0"), 10, 64)
	return n
}

// nowMinuteBucket returns a key that changes once per wall-clock minute, used
// to bucket the sub-agent launch rate limit without storing timestamps.
func nowMinuteBucket() string {
	return time.Now().UTC().Format("200601021504")
}

// consultRules evaluates the custom rule engine before a handler's built-in
// checks, per spec 4.11: a block short-circuits with that verdict, an allow
// short-circuits pass-through (no built-in checks run), and a warn is
// recorded but the handler's own checks still run and may override it.
func consultRules(re router.RuleEngine, tool, operation string) (verdict router.HandlerVerdict, shortCircuit bool) {
	if re == nil || operation == "" {
		return router.HandlerVerdict{}, false
	}
	action, reason, matched := re.Evaluate(tool, operation)
	if !matched {
		return router.HandlerVerdict{}, false
	}
	switch action {
	case "block":
		return router.HandlerVerdict{Blocked: true, Reason: reason}, true
	case "allow":
		return router.HandlerVerdict{}, true
	case "warn":
		return router.HandlerVerdict{Warn: true, Reason: reason}, false
	default:
		return router.HandlerVerdict{}, false
	}
}
