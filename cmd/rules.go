package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wow-system/wow-guard/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the custom rule file handlers consult before their built-in checks",
	Long: `Rules are a declarative override layer: name, glob pattern, optional
tool_filter, and an allow/warn/block action, evaluated first-match-wins
against a tool request's primary operation string before any handler's
built-in checks run.`,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Load and validate a custom rule file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesValidate,
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	fmt.Fprintf(cmd.OutOrStdout(), "Validating %s...\n", path)

	engine, err := rules.Load(path)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "  %d rule(s) loaded and compiled cleanly.\n", engine.Len())
	return nil
}
