package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// ShellHandler implements spec 4.10.1: command normalization, a catastrophic
// pattern catalogue, and an auto-fix for git commit authorship.
type ShellHandler struct {
	Config  Config
	Session *session.State
}

var catastrophicShellPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+(-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*|-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*)\s+/(etc|bin|sbin|boot|sys|usr)?\s*$`),
	regexp.MustCompile(`sudo\s+rm\s+-[a-zA-Z]*r[a-zA-Z]*f`),
	regexp.MustCompile(`dd\s+.*of=/dev/(sd|nvme|hd)`),
	regexp.MustCompile(`mkfs(\.\w+)?\s+/dev/`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
	regexp.MustCompile(`chmod\s+-R?\s*777\s+/\s*$`),
	regexp.MustCompile(`>\s*/(etc|boot|sys)/\S`),
	regexp.MustCompile(`eval\s+\$\w+`),
}

var gitCommitPattern = regexp.MustCompile(`git\s+commit\b`)
var authorFlagPattern = regexp.MustCompile(`--author[= ]`)

// emojiPattern matches common emoji code points auto-stripped from commits.
var emojiPattern = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}]`)

func (h ShellHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "Bash")

	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, req.Command())
	if shortCircuit {
		return req, ruleVerdict, nil
	}

	if h.Config.MaxBashCommands > 0 {
		count, _ := h.Session.Increment("metrics:bash_command_count", 1)
		if int(count) > h.Config.MaxBashCommands {
			return req, router.HandlerVerdict{Blocked: true, Reason: "rules.max_bash_commands exceeded"}, nil
		}
	}

	command := normalizeCommand(req.Command())

	for _, re := range catastrophicShellPatterns {
		if re.MatchString(command) {
			return req, router.HandlerVerdict{Blocked: true, Reason: "matches a catastrophic shell command pattern"}, nil
		}
	}

	if gitCommitPattern.MatchString(command) {
		fixed := autoFixGitCommit(command, h.Config.AuthorFull, h.Config.EmojiSet)
		if fixed != command {
			h.Session.TrackEvent("shell_auto_fix", "git_commit_author")
			req = req.WithField("command", fixed)
		}
	}

	return req, ruleVerdict, nil
}

// normalizeCommand collapses whitespace and strips escape backslashes before
// pattern matching, so `r\m -\rf /` is caught the same as `rm -rf /`.
func normalizeCommand(command string) string {
	command = strings.ReplaceAll(command, `\`, "")
	fields := strings.Fields(command)
	return strings.Join(fields, " ")
}

func autoFixGitCommit(command, authorFull string, emojiSet []string) string {
	fixed := command
	for _, e := range emojiSet {
		fixed = strings.ReplaceAll(fixed, e, "")
	}
	fixed = emojiPattern.ReplaceAllString(fixed, "")
	if authorFull != "" && !authorFlagPattern.MatchString(fixed) {
		fixed = fixed + " --author=" + authorFull
	}
	return strings.Join(strings.Fields(fixed), " ")
}
