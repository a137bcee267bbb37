package cmd

import (
	"fmt"

	"github.com/wow-system/wow-guard/internal/config"
	"github.com/wow-system/wow-guard/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Global flag values.
var (
	cfgFile   string
	verbose   bool
	logFormat string
)

// Cfg holds the loaded configuration, available to all subcommands.
var Cfg *config.Config

// SetVersionInfo is called from main to inject build-time version info.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	buildDate = d
	rootCmd.Version = v
	rootCmd.SetVersionTemplate(fmt.Sprintf("wow-guard version {{.Version}} (commit: %s, built: %s)\n", c, d))
}

var rootCmd = &cobra.Command{
	Use:   "wow-guard",
	Short: "wow-guard: security interception core for AI coding assistants",
	Long: `wow-guard sits between an AI coding assistant and its tool calls,
running every Bash/Write/Edit/Read/... request through a layered
decision pipeline (fast-path classifier, policy gate, privilege gate,
heuristic evasion detector, cross-operation correlator, per-tool
handlers, and a custom rule engine) before the host is allowed to
execute it.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(logFormat, verbose)

		var err error
		Cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $WOW_HOME/config/wow-config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text or json)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("wow-guard version {{.Version}} (commit: %s, built: %s)\n", commit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
