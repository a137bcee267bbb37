package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/wow-system/wow-guard/internal/config"
	"github.com/wow-system/wow-guard/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage and inspect the wow-guard security policy table",
	Long:  `Policy provides subcommands for validating and explaining policy decisions.`,
}

// Flag variables for policy validate.
var (
	policyOrgPath     string
	policyTeamPath    string
	policyProjectPath string
)

// Flag variables for policy explain.
var (
	policyLogEntry string
	policyLogFile  string
)

var policyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate policy hierarchy (org, team, project)",
	Long: `Validate checks the structure and tighten-only invariant of a policy hierarchy.

Loads org, team, and project policy files, validates each individually for
schema correctness, then checks that child policies only tighten (never loosen)
the tier of a rule inherited from a parent level.`,
	RunE: runPolicyValidate,
}

var policyExplainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain a policy decision from the decision log",
	Long: `Explain reads a decision log entry by line number and displays a
human-readable explanation of the policy decision, including the tool,
operation, tier, and matched rule.`,
	RunE: runPolicyExplain,
}

func init() {
	policyValidateCmd.Flags().StringVar(&policyOrgPath, "org", "", "path to org baseline policy (optional; built-in table is always the floor)")
	policyValidateCmd.Flags().StringVar(&policyTeamPath, "team", "", "path to team policy (optional)")
	policyValidateCmd.Flags().StringVar(&policyProjectPath, "project", "", "path to project policy (optional)")

	policyExplainCmd.Flags().StringVar(&policyLogEntry, "log-entry", "", "line number of the decision log entry to explain")
	policyExplainCmd.Flags().StringVar(&policyLogFile, "log-file", "", "path to decision log file (default: $WOW_HOME/logs/decisions.jsonl)")
	_ = policyExplainCmd.MarkFlagRequired("log-entry")

	policyCmd.AddCommand(policyValidateCmd)
	policyCmd.AddCommand(policyExplainCmd)
	rootCmd.AddCommand(policyCmd)
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	fmt.Println("Validating policy hierarchy...")

	type level struct {
		label string
		path  string
	}
	var levels []level
	if policyOrgPath != "" {
		levels = append(levels, level{"Org baseline", policyOrgPath})
	}
	if policyTeamPath != "" {
		levels = append(levels, level{"Team policy", policyTeamPath})
	}
	if policyProjectPath != "" {
		levels = append(levels, level{"Project policy", policyProjectPath})
	}

	org, team, project, err := policy.LoadPolicyHierarchy(policyOrgPath, policyTeamPath, policyProjectPath)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("  %-16s built-in table + %d overlay file(s)\n", "Org baseline:", len(levels))

	var schemaErrors int
	for _, p := range []*policy.Policy{org, team, project} {
		if p == nil {
			continue
		}
		errs := policy.ValidatePolicy(p)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Printf("    - %s: %s\n", e.Field, e.Message)
			}
			schemaErrors += len(errs)
		}
	}

	if schemaErrors > 0 {
		fmt.Printf("\n%d schema error(s) found. Policy validation failed.\n", schemaErrors)
		os.Exit(1)
	}

	if team != nil || project != nil {
		_, err := policy.MergePolicies(org, team, project)
		if err != nil {
			if mergeErr, ok := err.(*policy.MergeError); ok {
				fmt.Println()
				for _, v := range mergeErr.Violations {
					fmt.Println("VIOLATION: Policy loosening detected")
					fmt.Printf("  Detail: %s\n", v)
					fmt.Println()
				}
				fmt.Printf("%d violation(s) found. Policy validation failed.\n", len(mergeErr.Violations))
				os.Exit(1)
			}
			return fmt.Errorf("merge check failed: %w", err)
		}
		fmt.Println("\nEffective policy merged successfully.")
	}

	fmt.Println("All policies valid.")
	return nil
}

func runPolicyExplain(cmd *cobra.Command, args []string) error {
	lineNum, err := strconv.Atoi(policyLogEntry)
	if err != nil {
		return fmt.Errorf("--log-entry must be a line number (integer), got %q", policyLogEntry)
	}

	logFile := policyLogFile
	if logFile == "" {
		home, err := config.DefaultHomeDir()
		if err != nil {
			return fmt.Errorf("resolving default home dir: %w", err)
		}
		logFile = filepath.Join(home, "logs", "decisions.jsonl")
	}

	entry, err := readDecisionEntry(logFile, lineNum)
	if err != nil {
		return err
	}

	fmt.Printf("Decision #%d at %s\n\n", lineNum, entry.Timestamp.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Tool:      %s\n", entry.Tool)
	fmt.Printf("Operation: %s\n", entry.Operation)
	fmt.Printf("Session:   %s\n", entry.SessionID)
	fmt.Printf("Decision:  %s\n", entry.Decision)

	fmt.Println()
	if entry.Reason != "" {
		fmt.Printf("Reason:    %s\n", entry.Reason)
	}
	if entry.Tier != "" {
		fmt.Printf("           Tier: %s\n", entry.Tier)
	}
	if entry.Rule != "" {
		fmt.Printf("           Rule: %s\n", entry.Rule)
	}
	if entry.PolicyVer != "" {
		fmt.Printf("           Policy version: %s\n", entry.PolicyVer)
	}

	if entry.Decision == "matched" {
		fmt.Println()
		fmt.Println("To request an exception:")
		fmt.Println("  1. Submit a policy amendment request to the security team")
		if entry.Tier == string(policy.TierSuperAdmin) {
			fmt.Println("  2. Or activate SuperAdmin privilege: wow-guard privilege activate --mode=superadmin")
		}
	}

	return nil
}

// readDecisionEntry reads a single JSONL entry at the given 0-based line number.
func readDecisionEntry(path string, lineNum int) (*policy.DecisionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening decision log %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	cur := 0
	for {
		var entry policy.DecisionEntry
		if err := dec.Decode(&entry); err != nil {
			break
		}
		if cur == lineNum {
			return &entry, nil
		}
		cur++
	}

	return nil, fmt.Errorf("line %d not found (file has %d lines)", lineNum, cur)
}
