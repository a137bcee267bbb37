package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/fastpath"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// GlobHandler implements spec 4.10.5.
type GlobHandler struct {
	Config  Config
	Session *session.State
}

var broadGlobFromRoot = regexp.MustCompile(`^/\*\*/\*$`)

var credentialGlobPatterns = []string{"**/.env", "**/id_rsa", "**/*.pem", "**/credentials*"}

func (h GlobHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "Glob")

	pattern := req.Pattern()
	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, pattern)
	if shortCircuit {
		return req, ruleVerdict, nil
	}

	path := req.Path()
	if path != "" && fastpath.Classify(path, "Glob") == fastpath.Block {
		return req, router.HandlerVerdict{Blocked: true, Reason: "glob path matches a catastrophic fast-path pattern"}, nil
	}
	if path != "" {
		switch ClassifyReadPath(path) {
		case ReadTierBlock:
			return req, router.HandlerVerdict{Blocked: true, Reason: "glob path is under a protected directory"}, nil
		}
	}

	if sev, reason := classifyGlobPattern(pattern); sev != SeverityNone {
		return req, h.Config.verdict(sev, reason), nil
	}

	return req, ruleVerdict, nil
}

func classifyGlobPattern(pattern string) (Severity, string) {
	if broadGlobFromRoot.MatchString(pattern) {
		return SeverityWarn, "overly broad glob pattern from the filesystem root"
	}
	for _, c := range credentialGlobPatterns {
		if pattern == c || strings.HasSuffix(pattern, strings.TrimPrefix(c, "**")) {
			return SeverityWarn, "glob pattern targets credential files"
		}
	}
	if strings.Contains(pattern, "..") {
		return SeverityWarn, "glob pattern contains path traversal"
	}
	return SeverityNone, ""
}
