package handlers

import (
	"context"
	"regexp"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/fastpath"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// GrepHandler implements spec 4.10.6: Glob's path validation plus a scan of
// the search pattern itself for credential/PII regexes, after a fast-path
// pre-check on the target path.
type GrepHandler struct {
	Config  Config
	Session *session.State
}

var credentialSearchPattern = regexp.MustCompile(`(?i)password|api[_-]?key|secret|private[_-]?key|token`)

func (h GrepHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "Grep")

	pattern := req.Pattern()
	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, pattern)
	if shortCircuit {
		return req, ruleVerdict, nil
	}

	path := req.Path()
	if path != "" && fastpath.Classify(path, "Grep") == fastpath.Block {
		return req, router.HandlerVerdict{Blocked: true, Reason: "grep path matches a catastrophic fast-path pattern"}, nil
	}
	if path != "" && ClassifyReadPath(path) == ReadTierBlock {
		return req, router.HandlerVerdict{Blocked: true, Reason: "grep path is under a protected directory"}, nil
	}

	if sev, reason := classifyGlobPattern(pattern); sev != SeverityNone {
		return req, h.Config.verdict(sev, reason), nil
	}
	if credentialSearchPattern.MatchString(pattern) {
		return req, h.Config.verdict(SeverityWarn, "search pattern targets credential/PII content"), nil
	}

	return req, ruleVerdict, nil
}
