package handlers

import (
	"context"
	"regexp"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

const (
	taskLaunchesPerMinuteLimit = 5
	taskLaunchesPerSessionLimit = 20
)

// TaskHandler implements spec 4.10.7: sub-agent launch prompt classification
// plus launch-rate limiting.
type TaskHandler struct {
	Config  Config
	Session *session.State
}

var suspiciousTaskPromptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)harvest\s+(credentials|passwords|secrets|api\s*keys)`),
	regexp.MustCompile(`(?i)exfiltrate|upload\s+.*\s+to\s+(external|remote)`),
	regexp.MustCompile(`(?i)scan\s+(the\s+)?(network|subnet|ports)`),
	regexp.MustCompile(`(?i)modify\s+system\s+(files|configuration)|disable\s+(security|firewall|antivirus)`),
	regexp.MustCompile(`(?i)\brepeat\s+forever\b|\binfinite\s+loop\b|\bnever\s+stop\b`),
}

func (h TaskHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "Task")

	prompt := req.Prompt()
	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, prompt)
	if shortCircuit {
		return req, ruleVerdict, nil
	}

	total, _ := h.Session.Increment("metrics:task_launch_total", 1)
	if total > taskLaunchesPerSessionLimit {
		return req, router.HandlerVerdict{Blocked: true, Reason: "task launch limit for this session exceeded"}, nil
	}

	minuteBucket := nowMinuteBucket()
	perMinute, _ := h.Session.Increment("metrics:task_launch_minute:"+minuteBucket, 1)
	if perMinute > taskLaunchesPerMinuteLimit {
		return req, router.HandlerVerdict{Blocked: true, Reason: "task launch rate limit exceeded (5/min)"}, nil
	}

	for _, re := range suspiciousTaskPromptPatterns {
		if re.MatchString(prompt) {
			return req, h.Config.verdict(SeverityWarn, "sub-agent prompt matches a suspicious pattern"), nil
		}
	}

	return req, ruleVerdict, nil
}
