package handlers

import (
	"context"
	"os"
	"regexp"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// EditHandler implements spec 4.10.3.
type EditHandler struct {
	Config  Config
	Session *session.State
}

var securityIdentifierPattern = regexp.MustCompile(`\bvalidate_\w+|\bsanitize_\w+|\bauthenticate\b|\bauthorize\b|\breturn 1\b|\bexit 1\b`)

var dangerousReplacementPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[a-zA-Z]*r[a-zA-Z]*f`),
	regexp.MustCompile(`chmod\s+-R?\s*777`),
	regexp.MustCompile(`dd\s+.*of=/dev/`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
	regexp.MustCompile(`eval\s+\$`),
	regexp.MustCompile(`#\s*(bypass|backdoor)\s*$`),
}

func (h EditHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "Edit")

	path := req.FilePath()

	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, path)
	if shortCircuit {
		return req, ruleVerdict, nil
	}

	if ok, reason := validateWritablePath(path); !ok {
		return req, router.HandlerVerdict{Blocked: true, Reason: reason}, nil
	}

	if h.Config.MaxFileOperations > 0 && fileOperationCount(h.Session) > int64(h.Config.MaxFileOperations) {
		return req, router.HandlerVerdict{Blocked: true, Reason: "rules.max_file_operations exceeded"}, nil
	}

	if req.OldString() == "" {
		return req, router.HandlerVerdict{Blocked: true, Reason: "empty old_string"}, nil
	}

	for _, re := range dangerousReplacementPatterns {
		if re.MatchString(req.NewString()) {
			return req, router.HandlerVerdict{Blocked: true, Reason: "new_string contains a dangerous replacement"}, nil
		}
	}

	if securityIdentifierPattern.MatchString(req.OldString()) {
		return req, h.Config.verdict(SeverityWarn, "old_string touches a security-relevant identifier"), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return req, h.Config.verdict(SeverityWarn, "target file does not exist"), nil
	}

	return req, ruleVerdict, nil
}
