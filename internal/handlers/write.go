package handlers

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// WriteHandler implements spec 4.10.2.
type WriteHandler struct {
	Config  Config
	Session *session.State
}

var versionFilePattern = regexp.MustCompile(`(^|/)(package\.json|Cargo\.toml|pyproject\.toml|VERSION|version\.(go|py|txt))$`)

var shellShebangAuthor = regexp.MustCompile(`(?s)^#!.*\n(#.*\n)*#.*[Aa]uthor`)

func (h WriteHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "Write")

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

	content := req.Content()

	patterns := h.Config.CredentialPatterns
	if patterns == nil {
		patterns = DefaultCredentialPatterns()
	}
	if name := MatchAny(patterns, content); name != "" {
		return req, h.Config.verdict(SeverityWarn, "content matches credential pattern "+name), nil
	}

	if looksBinary(content) {
		return req, h.Config.verdict(SeverityWarn, "content looks binary"), nil
	}

	if isShellScriptPath(path) && !shellShebangAuthor.MatchString(content) {
		return req, h.Config.verdict(SeverityWarn, "shell script is missing a shebang + author header"), nil
	}

	if versionFilePattern.MatchString(path) {
		h.Session.TrackEvent("version_bump", path)
	}

	return req, ruleVerdict, nil
}

func looksBinary(content string) bool {
	if bytes.ContainsRune([]byte(content), 0x00) {
		return true
	}
	data := []byte(content)
	magics := [][]byte{
		{0x7f, 'E', 'L', 'F'}, // ELF
		{'M', 'Z'},            // MZ/PE
		{'P', 'K'},            // PK (zip)
	}
	for _, m := range magics {
		if bytes.HasPrefix(data, m) {
			return true
		}
	}
	return false
}

func isShellScriptPath(path string) bool {
	return strings.HasSuffix(path, ".sh") || strings.HasSuffix(path, ".bash")
}
