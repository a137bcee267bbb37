// Package router implements the single-entry pipeline that decides what
// happens to every tool invocation, per the nine-step sequence of spec §4.9.
// Grounded on the teacher's policy.ToolGate.Evaluate/EvaluateAndEnforce
// shape: build a result, consult the gate, log the decision, return.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/wow-system/wow-guard/internal/audit"
	"github.com/wow-system/wow-guard/internal/correlator"
	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/fastpath"
	"github.com/wow-system/wow-guard/internal/heuristic"
	"github.com/wow-system/wow-guard/internal/policy"
	"github.com/wow-system/wow-guard/internal/privilege"
	"github.com/wow-system/wow-guard/internal/session"
)

// Handler is implemented by each per-tool validator in internal/handlers.
// It receives the request and the custom rule engine so built-in checks can
// defer to it first, and returns a (possibly mutated) request plus a verdict.
type Handler interface {
	Handle(ctx context.Context, req core.ToolRequest, rules RuleEngine) (core.ToolRequest, HandlerVerdict, error)
}

// HandlerVerdict is what a tool handler decides about a request.
type HandlerVerdict struct {
	Blocked bool
	Warn    bool
	Reason  string
}

// RuleEngine is the subset of internal/rules a handler consults before its
// own built-in checks (spec 4.9 step 9).
type RuleEngine interface {
	Evaluate(tool, operation string) (action string, reason string, matched bool)
}

// Core owns everything the pipeline needs for the life of one process:
// the session state, the correlation window, the policy gate, the
// privilege guard, and the registered per-tool handlers.
type Core struct {
	Session     *session.State
	Window      *correlator.Window
	PolicyGate  *policy.PolicyGate
	Guard       *privilege.Guard
	Rules       RuleEngine
	Logger      audit.EventLogger
	FastPathOn  bool
	StrictMode  bool
	Handlers    map[string]Handler
}

// RegisterHandler wires a tool handler into the pipeline (spec 4.9 step 8).
func (c *Core) RegisterHandler(tool string, h Handler) {
	if c.Handlers == nil {
		c.Handlers = make(map[string]Handler)
	}
	c.Handlers[tool] = h
}

// Handle runs the full nine-step pipeline against one request.
func (c *Core) Handle(ctx context.Context, req core.ToolRequest) core.Decision {
	// Step 1: absent tool name passes through unchanged.
	if req.Tool == "" {
		return core.Allow(req)
	}

	// Step 2: extract the primary operation string.
	operation := req.PrimaryOperation()

	c.logEvent(ctx, audit.EventToolInvoke, req.Tool, audit.SeverityInfo, map[string]any{"operation": operation})

	// Fast path: cheap allow/block before the heavier checks run at all,
	// for path-bearing tools only (spec 4.4 operates on filesystem paths).
	if c.FastPathOn && operation != "" && isPathTool(req.Tool) {
		switch fastpath.Classify(operation, req.Tool) {
		case fastpath.Block:
			return c.block(ctx, req, core.CriticalBlock("matches a catastrophic fast-path pattern"))
		case fastpath.Allow:
			c.track(req, operation)
			return c.allow(ctx, req)
		}
	}

	// Steps 3-4: CRITICAL (never bypassable) and SUPERADMIN policy checks,
	// both consulted through the same gate the teacher's ToolGate uses.
	superAdminActive := c.Guard != nil && c.Guard.IsSuperAdminActive()
	if err := c.PolicyGate.EvaluateAndEnforce(ctx, req.Tool, operation, superAdminActive); err != nil {
		var critical *policy.CriticalBlockError
		var needSuperAdmin *policy.SuperAdminRequiredError
		switch {
		case errors.As(err, &critical):
			return c.block(ctx, req, core.CriticalBlock(critical.Reason))
		case errors.As(err, &needSuperAdmin):
			return c.superAdminRequired(ctx, req, needSuperAdmin.Reason)
		default:
			return c.block(ctx, req, core.Block(fmt.Sprintf("policy evaluation error: %v", err)))
		}
	}

	// Step 5: bypass short-circuit skips the handler entirely.
	if c.Guard != nil && c.Guard.IsBypassActive() {
		c.Guard.UpdateActivity()
		return c.allow(ctx, req)
	}

	// Step 6: heuristic detector.
	if operation != "" {
		sig := heuristic.Detect(operation)
		switch heuristic.Classify(sig) {
		case heuristic.ClassBlock:
			c.logEvent(ctx, audit.EventHeuristicFinding, req.Tool, audit.SeverityHigh, map[string]any{
				"category": sig.Category, "confidence": sig.Confidence, "reason": sig.Reason,
			})
			return c.block(ctx, req, core.Block(sig.Reason))
		case heuristic.ClassWarn:
			c.logEvent(ctx, audit.EventHeuristicFinding, req.Tool, audit.SeverityWarning, map[string]any{
				"category": sig.Category, "confidence": sig.Confidence, "reason": sig.Reason,
			})
		}
	}

	// Step 7: correlator check, then track this operation for the future.
	if c.Window != nil {
		verdict := c.Window.Check(req.Tool, operation)
		if verdict.Dangerous {
			severity := audit.SeverityWarning
			if verdict.Risk >= 70 {
				severity = audit.SeverityHigh
			}
			c.logEvent(ctx, audit.EventCorrelatorFinding, req.Tool, severity, map[string]any{
				"reason": verdict.Reason, "risk": verdict.Risk,
			})
			if verdict.Risk >= 70 {
				return c.block(ctx, req, core.Block(verdict.Reason))
			}
		}
		c.track(req, operation)
	}

	// Step 8 & 9: handler dispatch, handlers consult the rule engine first.
	h, ok := c.Handlers[req.Tool]
	if !ok {
		c.trackUnknownTool(req.Tool)
		return c.allow(ctx, req)
	}

	mutated, hv, err := h.Handle(ctx, req, c.Rules)
	if err != nil {
		return c.block(ctx, req, core.Block(fmt.Sprintf("handler error: %v", err)))
	}
	if hv.Blocked {
		return c.block(ctx, req, core.Block(hv.Reason))
	}
	if hv.Warn {
		c.logEvent(ctx, audit.EventToolInvoke, req.Tool, audit.SeverityWarning, map[string]any{"reason": hv.Reason})
	}
	return c.allow(ctx, mutated)
}

// isPathTool reports whether the router's top-level fast path may run
// against this tool's PrimaryOperation() string. Glob and Grep are
// deliberately excluded: their PrimaryOperation() is the pattern field, not
// the path field, and classifying "README.md" as an allowed extension would
// bypass their handlers' own path-under-protected-directory check
// (internal/handlers/glob.go, grep.go already call fastpath.Classify on
// req.Path() themselves).
func isPathTool(tool string) bool {
	switch tool {
	case "Write", "Edit", "Read", "NotebookEdit":
		return true
	default:
		return false
	}
}

func (c *Core) track(req core.ToolRequest, operation string) {
	if c.Window == nil {
		return
	}
	switch req.Tool {
	case "Write", "Edit", "NotebookEdit":
		c.Window.Track(req.Tool, req.FilePath(), req.Content())
	case "Bash":
		content := req.Command()
		if target, ok := correlator.ImplicitWriteTarget(content); ok {
			c.Window.Track("Write", target, content)
		}
		c.Window.Track("Bash", "", content)
	}
}

func (c *Core) trackUnknownTool(tool string) {
	if c.Session == nil {
		return
	}
	key := "unknown_tool:" + tool + ":count"
	count, _ := c.Session.Increment(key, 1)
	if count == 1 {
		c.Session.Set("unknown_tool:"+tool+":first_seen", nowRFC3339())
		c.logEvent(context.Background(), audit.EventToolInvoke, tool, audit.SeverityInfo, map[string]any{"unknown_tool": true})
	}
	c.Session.Set("unknown_tool:"+tool+":last_seen", nowRFC3339())
}

func (c *Core) allow(ctx context.Context, req core.ToolRequest) core.Decision {
	c.logEvent(ctx, audit.EventToolAllow, req.Tool, audit.SeverityInfo, nil)
	return core.Allow(req)
}

func (c *Core) block(ctx context.Context, req core.ToolRequest, d core.Decision) core.Decision {
	eventType := audit.EventToolBlock
	severity := audit.SeverityWarning
	if d.Kind == core.KindCriticalBlock {
		eventType = audit.EventToolCriticalBlock
		severity = audit.SeverityCritical
	}
	c.logEvent(ctx, eventType, req.Tool, severity, map[string]any{"reason": d.Reason})
	return d
}

func (c *Core) superAdminRequired(ctx context.Context, req core.ToolRequest, reason string) core.Decision {
	c.logEvent(ctx, audit.EventToolSuperAdminRequired, req.Tool, audit.SeverityHigh, map[string]any{"reason": reason})
	return core.SuperAdminRequired(reason)
}

func (c *Core) logEvent(ctx context.Context, t audit.EventType, tool string, sev audit.Severity, details map[string]any) {
	if c.Logger == nil {
		return
	}
	sessionID := ""
	if c.Session != nil {
		sessionID = c.Session.SessionID()
	}
	_ = c.Logger.Log(ctx, audit.AuditEvent{
		Timestamp: timeNow(),
		EventType: t,
		SessionID: sessionID,
		Tool:      tool,
		Source:    audit.SourceRouter,
		Severity:  sev,
		Details:   details,
	})
}
