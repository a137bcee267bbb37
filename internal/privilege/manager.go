package privilege

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Manager drives the activate/deactivate/is_active state machine for a
// single privilege mode. It owns no in-memory token copy: every check
// re-reads the mode's on-disk files, so multiple processes observing the
// same directory see a consistent view (spec.md's cross-invocation
// concurrency model).
type Manager struct {
	mode      Mode
	store     *FileStore
	policy    DurationPolicy
	biometric BiometricProvider
	now       func() time.Time
	ttyCheck  func() bool
}

// ManagerOption customizes a Manager at construction time.
type ManagerOption func(*Manager)

// WithBiometric overrides the platform-detected BiometricProvider, mainly
// for tests.
func WithBiometric(p BiometricProvider) ManagerOption {
	return func(m *Manager) { m.biometric = p }
}

// WithClock overrides the Manager's time source, mainly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithTTYCheck overrides the stdin-is-a-terminal check, mainly for tests
// that exercise activate() without a real controlling terminal.
func WithTTYCheck(check func() bool) ManagerOption {
	return func(m *Manager) { m.ttyCheck = check }
}

// NewManager constructs a Manager for mode, persisting its state under dir.
func NewManager(mode Mode, dir string, opts ...ManagerOption) (*Manager, error) {
	store, err := NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		mode:      mode,
		store:     store,
		policy:    PolicyFor(mode),
		biometric: newPlatformProvider(),
		now:       time.Now,
		ttyCheck:  isStdinTTY,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Mode returns the privilege mode this Manager drives.
func (m *Manager) Mode() Mode { return m.mode }

// SetPassphrase configures (or replaces) the mode's persistent passphrase.
// Without one configured, the HMAC key is an ephemeral per-installation
// secret generated on first activation.
func (m *Manager) SetPassphrase(passphrase string) error {
	hash, err := hashPassphrase(passphrase)
	if err != nil {
		return err
	}
	return m.store.WriteHash(hash)
}

// Activate requires stdin bound to a TTY, checks the rate-limit lockout
// schedule, authenticates (biometric first, passphrase fallback), and on
// success mints a fresh token and touches activity.
func (m *Manager) Activate(ctx context.Context, passphrase string) error {
	if wait, locked := m.lockoutRemaining(); locked {
		return fmt.Errorf("%w: retry in %s", ErrRateLimited, wait.Round(time.Second))
	}

	if err := m.authenticate(ctx, passphrase); err != nil {
		if recErr := m.RecordFailure(); recErr != nil {
			return fmt.Errorf("%w (also failed to record failure: %v)", err, recErr)
		}
		return err
	}

	return m.grant()
}

// grant mints a token and touches activity without re-running
// authentication. Used by Activate and by Guard to satisfy "superadmin
// implies bypass" without a second prompt.
func (m *Manager) grant() error {
	key, err := m.hmacKey()
	if err != nil {
		return err
	}

	now := m.now()
	token := mintToken(key, now, m.policy.MaxDuration)
	if err := m.store.WriteToken(token); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}
	if err := m.store.TouchActivity(now); err != nil {
		return fmt.Errorf("persisting activity: %w", err)
	}
	return m.ResetFailures()
}

// Deactivate removes the token, activity, and ephemeral secret files.
func (m *Manager) Deactivate() error {
	if err := m.store.RemoveToken(); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	if err := m.store.RemoveActivity(); err != nil {
		return fmt.Errorf("removing activity: %w", err)
	}
	if err := m.store.RemoveEphemeralSecret(); err != nil {
		return fmt.Errorf("removing ephemeral secret: %w", err)
	}
	return nil
}

// IsActive reports whether the mode is currently unlocked, auto-deactivating
// on any invariant failure (bad HMAC, expired token, inactivity timeout).
func (m *Manager) IsActive() bool {
	active, _ := m.checkActive()
	return active
}

func (m *Manager) checkActive() (bool, error) {
	token, err := m.store.ReadToken()
	if err != nil {
		return false, nil
	}

	key, err := m.hmacKey()
	if err != nil {
		_ = m.Deactivate()
		return false, err
	}
	if !token.Verify(key) {
		_ = m.Deactivate()
		return false, ErrTokenInvalid
	}

	now := m.now()
	if now.After(token.Expires) {
		_ = m.Deactivate()
		return false, ErrTokenExpired
	}

	lastActivity, err := m.store.LastActivity()
	if err != nil {
		_ = m.Deactivate()
		return false, fmt.Errorf("reading last activity: %w", err)
	}
	if now.Sub(lastActivity) > m.policy.InactivityTimeout {
		_ = m.Deactivate()
		return false, ErrInactivityTimeout
	}

	return true, nil
}

// UpdateActivity resets the inactivity dead-bolt; call on each allowed
// operation while the mode is active.
func (m *Manager) UpdateActivity() error {
	active, err := m.checkActive()
	if !active {
		if err != nil {
			return err
		}
		return ErrNotActive
	}
	return m.store.TouchActivity(m.now())
}

// RecordFailure increments the consecutive-failure counter used by the
// rate-limit lockout schedule.
func (m *Manager) RecordFailure() error {
	rec, err := m.store.ReadFailures()
	if err != nil {
		return fmt.Errorf("reading failure record: %w", err)
	}
	rec.Count++
	rec.LastFailure = m.now()
	return m.store.WriteFailures(rec)
}

// ResetFailures clears the consecutive-failure counter.
func (m *Manager) ResetFailures() error {
	return m.store.ClearFailures()
}

func (m *Manager) lockoutRemaining() (time.Duration, bool) {
	rec, err := m.store.ReadFailures()
	if err != nil || rec.Count == 0 {
		return 0, false
	}
	delay := lockoutDelay(m.mode, rec.Count)
	if delay == 0 {
		return 0, false
	}
	elapsed := m.now().Sub(rec.LastFailure)
	if elapsed >= delay {
		return 0, false
	}
	return delay - elapsed, true
}

// hmacKey returns the stored passphrase hash if configured, else the
// per-installation ephemeral secret (generated on first use).
func (m *Manager) hmacKey() ([]byte, error) {
	hash, err := m.store.ReadHash()
	if err == nil {
		return []byte(hash), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading passphrase hash: %w", err)
	}
	return m.store.EphemeralSecret()
}

func (m *Manager) authenticate(ctx context.Context, passphrase string) error {
	if !m.ttyCheck() {
		return ErrNotTTY
	}

	if m.biometric != nil && m.biometric.Available() {
		reason := fmt.Sprintf("activate %s privilege", m.mode)
		err := m.biometric.Authenticate(ctx, reason)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrBiometricUnavailable):
			// Fall through to the passphrase prompt.
		default:
			return err
		}
	}

	if !m.store.HasHash() {
		return fmt.Errorf("%w: no passphrase configured for %s privilege", ErrInvalidPassphrase, m.mode)
	}

	if passphrase == "" {
		entered, err := readPassphrase(fmt.Sprintf("Enter %s passphrase: ", m.mode))
		if err != nil {
			return err
		}
		passphrase = entered
	}

	stored, err := m.store.ReadHash()
	if err != nil {
		return fmt.Errorf("reading passphrase hash: %w", err)
	}
	if !verifyPassphrase(stored, passphrase) {
		return ErrInvalidPassphrase
	}
	return nil
}
