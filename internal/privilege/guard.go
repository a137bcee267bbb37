package privilege

import (
	"context"
	"fmt"
	"path/filepath"
)

// Guard coordinates the bypass and superadmin Managers, enforcing the
// "activating superadmin also activates bypass; deactivating superadmin
// also deactivates bypass" relationship.
type Guard struct {
	Bypass     *Manager
	SuperAdmin *Manager
}

// NewGuard builds the two Managers under baseDir/bypass and
// baseDir/superadmin.
func NewGuard(baseDir string, opts ...ManagerOption) (*Guard, error) {
	bypass, err := NewManager(ModeBypass, filepath.Join(baseDir, string(ModeBypass)), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bypass manager: %w", err)
	}
	superAdmin, err := NewManager(ModeSuperAdmin, filepath.Join(baseDir, string(ModeSuperAdmin)), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating superadmin manager: %w", err)
	}
	return &Guard{Bypass: bypass, SuperAdmin: superAdmin}, nil
}

// ActivateBypass runs the bypass-only activation flow.
func (g *Guard) ActivateBypass(ctx context.Context, passphrase string) error {
	return g.Bypass.Activate(ctx, passphrase)
}

// ActivateSuperAdmin authenticates once against the superadmin mode and,
// on success, also grants bypass without a second authentication prompt.
func (g *Guard) ActivateSuperAdmin(ctx context.Context, passphrase string) error {
	if err := g.SuperAdmin.Activate(ctx, passphrase); err != nil {
		return err
	}
	if !g.Bypass.IsActive() {
		if err := g.Bypass.grant(); err != nil {
			return fmt.Errorf("granting implied bypass privilege: %w", err)
		}
	}
	return nil
}

// DeactivateBypass locks only the bypass mode.
func (g *Guard) DeactivateBypass() error {
	return g.Bypass.Deactivate()
}

// DeactivateSuperAdmin locks superadmin and, per spec, bypass with it.
func (g *Guard) DeactivateSuperAdmin() error {
	if err := g.SuperAdmin.Deactivate(); err != nil {
		return err
	}
	return g.Bypass.Deactivate()
}

// IsBypassActive reports whether bypass-level access is unlocked, which
// holds whenever bypass itself or the higher superadmin tier is active.
func (g *Guard) IsBypassActive() bool {
	return g.Bypass.IsActive() || g.SuperAdmin.IsActive()
}

// IsSuperAdminActive reports whether superadmin is unlocked.
func (g *Guard) IsSuperAdminActive() bool {
	return g.SuperAdmin.IsActive()
}

// UpdateActivity resets the inactivity dead-bolt on whichever modes are
// currently active; call once per allowed operation.
func (g *Guard) UpdateActivity() {
	if g.Bypass.IsActive() {
		_ = g.Bypass.UpdateActivity()
	}
	if g.SuperAdmin.IsActive() {
		_ = g.SuperAdmin.UpdateActivity()
	}
}
