package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// NotebookEditHandler implements spec 4.10.10: reuses ClassifyReadPath's
// tier split (plus notebook-specific tier-2 directories) for the notebook
// path, and validates the new cell source for shell/eval-style escapes.
type NotebookEditHandler struct {
	Config  Config
	Session *session.State
}

var notebookTier2Dirs = []string{"/root", "/.jupyter", "/.ipython"}

var notebookCellBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*%%?bash\b`),
	regexp.MustCompile(`^\s*!\s*(rm|sudo)\b`),
	regexp.MustCompile(`curl[^|\n]*\|\s*(bash|sh)\b`),
	regexp.MustCompile(`wget[^|\n]*\|\s*(bash|sh)\b`),
	regexp.MustCompile(`\b(eval|exec|compile)\s*\(`),
	regexp.MustCompile(`__import__\s*\(`),
	regexp.MustCompile(`os\.system\s*\([^)]*rm\b`),
	regexp.MustCompile(`subprocess\.\w+\([^)]*rm\b`),
}

var notebookCellWarnBuiltins = regexp.MustCompile(`\b(pickle\.loads|marshal\.loads|input\s*\(|open\s*\(\s*['"]/)`)

func (h NotebookEditHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "NotebookEdit")

	path := req.NotebookPath()

	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, path)
	if shortCircuit {
		return req, ruleVerdict, nil
	}
	switch classifyNotebookPath(path) {
	case ReadTierBlock:
		return req, router.HandlerVerdict{Blocked: true, Reason: "notebook path is under a protected directory"}, nil
	case ReadTierWarn:
		return req, h.Config.verdict(SeverityWarn, "notebook path is sensitive"), nil
	}

	source := req.NewSource()
	for _, re := range notebookCellBlockPatterns {
		if re.MatchString(source) {
			return req, router.HandlerVerdict{Blocked: true, Reason: "notebook cell source contains a shell or code-execution escape"}, nil
		}
	}
	if notebookCellWarnBuiltins.MatchString(source) {
		return req, h.Config.verdict(SeverityWarn, "notebook cell source uses a suspicious builtin"), nil
	}

	return req, ruleVerdict, nil
}

func classifyNotebookPath(path string) ReadTier {
	if tier := ClassifyReadPath(path); tier != ReadTierAllow {
		return tier
	}
	lower := strings.ToLower(path)
	for _, dir := range notebookTier2Dirs {
		if strings.Contains(lower, strings.ToLower(dir)) {
			return ReadTierWarn
		}
	}
	return ReadTierAllow
}
