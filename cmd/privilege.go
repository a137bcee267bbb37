package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wow-system/wow-guard/internal/config"
	"github.com/wow-system/wow-guard/internal/privilege"
)

var privilegeCmd = &cobra.Command{
	Use:   "privilege",
	Short: "Activate, deactivate, or inspect bypass/superadmin privilege tiers",
	Long: `Privilege manages the two time-boxed escalation tiers the router
consults, both passphrase or biometric gated: bypass (up to 4 hours,
skips the heuristic, correlator and handler checks) and superadmin (up
to 20 minutes, unlocks SUPERADMIN policy matches, implies bypass). No
tier unlocks a CRITICAL match. State lives under $WOW_HOME/privilege and is re-validated on
every check, so it survives and is shared across separate "handle"
invocations.`,
}

var privilegeMode string

var privilegeActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Activate a privilege tier",
	Long: `Activate authenticates against the chosen tier (biometric first,
falling back to a passphrase prompt read directly from the controlling
TTY) and, on success, mints a time-boxed token. Activating superadmin
also grants bypass without a second prompt.`,
	RunE: runPrivilegeActivate,
}

var privilegeDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate a privilege tier",
	Long:  `Deactivate locks the chosen tier. Deactivating superadmin also locks bypass.`,
	RunE:  runPrivilegeDeactivate,
}

var privilegeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether bypass and superadmin are currently active",
	RunE:  runPrivilegeStatus,
}

func init() {
	privilegeActivateCmd.Flags().StringVar(&privilegeMode, "mode", "", "privilege tier: bypass or superadmin")
	privilegeDeactivateCmd.Flags().StringVar(&privilegeMode, "mode", "", "privilege tier: bypass or superadmin")

	privilegeCmd.AddCommand(privilegeActivateCmd, privilegeDeactivateCmd, privilegeStatusCmd)
	rootCmd.AddCommand(privilegeCmd)
}

func buildGuard() (*privilege.Guard, error) {
	home, err := config.DefaultHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home dir: %w", err)
	}
	return privilege.NewGuard(filepath.Join(home, "privilege"))
}

func parsePrivilegeMode() (privilege.Mode, error) {
	switch privilege.Mode(privilegeMode) {
	case privilege.ModeBypass:
		return privilege.ModeBypass, nil
	case privilege.ModeSuperAdmin:
		return privilege.ModeSuperAdmin, nil
	default:
		return "", fmt.Errorf("--mode must be %q or %q", privilege.ModeBypass, privilege.ModeSuperAdmin)
	}
}

func runPrivilegeActivate(cmd *cobra.Command, args []string) error {
	mode, err := parsePrivilegeMode()
	if err != nil {
		return err
	}
	guard, err := buildGuard()
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch mode {
	case privilege.ModeBypass:
		err = guard.ActivateBypass(ctx, "")
	case privilege.ModeSuperAdmin:
		err = guard.ActivateSuperAdmin(ctx, "")
	}
	if err != nil {
		if errors.Is(err, privilege.ErrRateLimited) {
			fmt.Fprintf(cmd.ErrOrStderr(), "locked out: %v\n", err)
			return nil
		}
		return fmt.Errorf("activating %s: %w", mode, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s privilege activated\n", mode)
	return nil
}

func runPrivilegeDeactivate(cmd *cobra.Command, args []string) error {
	mode, err := parsePrivilegeMode()
	if err != nil {
		return err
	}
	guard, err := buildGuard()
	if err != nil {
		return err
	}

	switch mode {
	case privilege.ModeBypass:
		err = guard.DeactivateBypass()
	case privilege.ModeSuperAdmin:
		err = guard.DeactivateSuperAdmin()
	}
	if err != nil {
		return fmt.Errorf("deactivating %s: %w", mode, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s privilege deactivated\n", mode)
	return nil
}

func runPrivilegeStatus(cmd *cobra.Command, args []string) error {
	guard, err := buildGuard()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "bypass: %s\n", activeLabel(guard.IsBypassActive()))
	fmt.Fprintf(cmd.OutOrStdout(), "superadmin: %s\n", activeLabel(guard.IsSuperAdminActive()))
	return nil
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
