package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wow-system/wow-guard/internal/audit"
	"github.com/wow-system/wow-guard/internal/config"
	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/correlator"
	"github.com/wow-system/wow-guard/internal/handlers"
	"github.com/wow-system/wow-guard/internal/policy"
	"github.com/wow-system/wow-guard/internal/privilege"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/rules"
	"github.com/wow-system/wow-guard/internal/session"
)

var handleCmd = &cobra.Command{
	Use:   "handle",
	Short: "Run one tool request through the decision pipeline",
	Long: `Handle reads a single tool-request JSON object from stdin, runs it
through the full pipeline (fast path, policy gate, privilege gate,
heuristic detector, correlator, per-tool handler, custom rule engine),
and exits with the code spec'd for the resulting decision:
  0 allow (possibly-mutated JSON on stdout)
  2 block (bypassable)
  3 critical block
  4 superadmin required
Human-readable reasons are written to stderr, severity-tagged.`,
	RunE: runHandle,
}

func init() {
	rootCmd.AddCommand(handleCmd)
}

func runHandle(cmd *cobra.Command, args []string) error {
	req, err := decodeToolRequest(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("decoding tool request: %w", err)
	}

	pc, err := buildCore()
	if err != nil {
		return fmt.Errorf("building pipeline core: %w", err)
	}
	defer pc.logger.Close()

	decision := pc.router.Handle(context.Background(), req)

	if err := pc.session.Save(pc.sessionPath); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "DEBUG: saving session state: %v\n", err)
	}

	printDecision(cmd.OutOrStdout(), cmd.ErrOrStderr(), decision)
	os.Exit(decision.ExitCode())
	return nil
}

// decodeToolRequest reads `{"tool": "...", <tool-specific fields>: "..."}`
// from r and turns it into a core.ToolRequest. Unknown tools pass through
// with whatever fields were sent, per spec §6.
func decodeToolRequest(r io.Reader) (core.ToolRequest, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return core.ToolRequest{}, err
	}
	tool, _ := raw["tool"].(string)
	req := core.NewToolRequest(tool)
	for k, v := range raw {
		if k == "tool" {
			continue
		}
		if s, ok := v.(string); ok {
			req = req.WithField(k, s)
		}
	}
	return req, nil
}

func printDecision(stdout, stderr io.Writer, decision core.Decision) {
	if decision.Kind == core.KindAllow {
		data, err := json.Marshal(decision.Request.Fields)
		if err == nil {
			fmt.Fprintln(stdout, string(data))
		}
		return
	}
	fmt.Fprintf(stderr, "%s: %s\n", decision.Severity(), decision.Reason)
	if hint := decision.RemediationHint(); hint != "" {
		fmt.Fprintln(stderr, hint)
	}
}

// pipelineCore bundles the wired router plus the handles that must be
// persisted or closed after a single `handle` invocation.
type pipelineCore struct {
	router      *router.Core
	session     *session.State
	sessionPath string
	logger      audit.EventLogger
}

func buildCore() (*pipelineCore, error) {
	home, err := config.DefaultHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home dir: %w", err)
	}

	if Cfg == nil {
		Cfg, err = config.Load("")
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	sessionPath := filepath.Join(home, "state", "session.state")
	sess := session.New()
	if _, statErr := os.Stat(sessionPath); statErr == nil {
		_ = sess.Load(sessionPath)
	}

	rulesDir := Cfg.Policy.RulesDir
	policyDir := rulesDir
	if policyDir == "" {
		policyDir, err = filepath.Abs(filepath.Join(home, "policy"))
		if err != nil {
			return nil, err
		}
	}
	engine, err := policy.NewEngine(policyDir)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	var decisionLogger *policy.DecisionLogger
	if Cfg.Audit.Enabled {
		logCfg := policy.DefaultDecisionLogConfig()
		if Cfg.Policy.DecisionLogPath != "" {
			logCfg.Path = Cfg.Policy.DecisionLogPath
		} else {
			logCfg.Path = filepath.Join(home, "logs", "decisions.jsonl")
		}
		decisionLogger, err = policy.NewDecisionLogger(logCfg)
		if err != nil {
			return nil, fmt.Errorf("opening decision log: %w", err)
		}
	}

	gate := policy.NewPolicyGate(engine, decisionLogger, sess.SessionID())

	guard, err := privilege.NewGuard(filepath.Join(home, "privilege"))
	if err != nil {
		return nil, fmt.Errorf("opening privilege state: %w", err)
	}

	var eventLogger audit.EventLogger = audit.NewNopLogger()
	if Cfg.Audit.Enabled {
		flCfg := audit.DefaultFileLoggerConfig()
		flCfg.Path = Cfg.Audit.LogPath
		if flCfg.Path == "" {
			flCfg.Path = filepath.Join(home, "logs", "wow.log")
		}
		flCfg.MaxSizeMB = Cfg.Audit.MaxSizeMB
		flCfg.SampleRate = Cfg.Audit.SampleRate
		fileLogger, err := audit.NewFileLogger(flCfg)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		eventLogger = fileLogger
	}

	var ruleEngine router.RuleEngine
	if Cfg.Policy.CustomRulesPath != "" {
		if _, statErr := os.Stat(Cfg.Policy.CustomRulesPath); statErr == nil {
			re, loadErr := rules.Load(Cfg.Policy.CustomRulesPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading custom rules: %w", loadErr)
			}
			ruleEngine = re
		}
	}

	credentialPatterns, err := handlers.LoadCredentialPatterns(Cfg.Rules.CredentialPatternsPath)
	if err != nil {
		return nil, fmt.Errorf("loading credential pattern catalogue: %w", err)
	}

	hCfg := handlers.Config{
		StrictMode:         Cfg.Enforcement.StrictMode,
		BlockOnViolation:   Cfg.Enforcement.BlockOnViolation,
		MaxFileOperations:  Cfg.Rules.MaxFileOperations,
		MaxBashCommands:    Cfg.Rules.MaxBashCommands,
		AuthorFull:         os.Getenv("WOW_GIT_AUTHOR"),
		CredentialPatterns: credentialPatterns,
	}

	rc := &router.Core{
		Session:    sess,
		Window:     correlator.NewWindow(),
		PolicyGate: gate,
		Guard:      guard,
		Rules:      ruleEngine,
		Logger:     eventLogger,
		FastPathOn: Cfg.Performance.FastPathEnabled,
		StrictMode: Cfg.Enforcement.StrictMode,
		Handlers:   make(map[string]router.Handler),
	}
	rc.RegisterHandler("Bash", handlers.ShellHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("Write", handlers.WriteHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("Edit", handlers.EditHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("Read", handlers.ReadHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("Glob", handlers.GlobHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("Grep", handlers.GrepHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("Task", handlers.TaskHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("WebFetch", handlers.WebFetchHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("WebSearch", handlers.WebSearchHandler{Config: hCfg, Session: sess})
	rc.RegisterHandler("NotebookEdit", handlers.NotebookEditHandler{Config: hCfg, Session: sess})

	return &pipelineCore{router: rc, session: sess, sessionPath: sessionPath, logger: eventLogger}, nil
}
