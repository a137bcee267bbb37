package privilege

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time  { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func alwaysTTY() bool { return true }

func testManager(t *testing.T, mode Mode, clock *fakeClock, passphrase string) *Manager {
	t.Helper()
	m, err := NewManager(mode, t.TempDir(),
		WithClock(clock.now),
		WithTTYCheck(alwaysTTY),
		WithBiometric(MockProvider{}),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if passphrase != "" {
		if err := m.SetPassphrase(passphrase); err != nil {
			t.Fatalf("SetPassphrase: %v", err)
		}
	}
	return m
}

func TestManagerActivateRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0).UTC()}
	m := testManager(t, ModeBypass, clock, "hunter2")

	if err := m.Activate(context.Background(), "hunter2"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !m.IsActive() {
		t.Error("expected mode to be active immediately after Activate")
	}
}

func TestManagerActivateRejectsWrongPassphrase(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := testManager(t, ModeBypass, clock, "hunter2")

	err := m.Activate(context.Background(), "wrong")
	if !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
	if m.IsActive() {
		t.Error("expected mode to remain locked after a failed activation")
	}
}

func TestManagerActivateRequiresTTY(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m, err := NewManager(ModeBypass, t.TempDir(),
		WithClock(clock.now),
		WithTTYCheck(func() bool { return false }),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.SetPassphrase("hunter2"); err != nil {
		t.Fatalf("SetPassphrase: %v", err)
	}

	if err := m.Activate(context.Background(), "hunter2"); !errors.Is(err, ErrNotTTY) {
		t.Fatalf("expected ErrNotTTY, got %v", err)
	}
}

func TestManagerExpiresAfterMaxDuration(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := testManager(t, ModeSuperAdmin, clock, "hunter2")

	if err := m.Activate(context.Background(), "hunter2"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	clock.advance(PolicyFor(ModeSuperAdmin).MaxDuration + time.Second)
	if m.IsActive() {
		t.Error("expected mode to expire once max duration has elapsed")
	}
}

func TestManagerLocksOnInactivity(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := testManager(t, ModeBypass, clock, "hunter2")

	if err := m.Activate(context.Background(), "hunter2"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	clock.advance(PolicyFor(ModeBypass).InactivityTimeout + time.Second)
	if m.IsActive() {
		t.Error("expected inactivity dead-bolt to lock the mode")
	}
}

func TestManagerUpdateActivityResetsDeadBolt(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := testManager(t, ModeBypass, clock, "hunter2")

	if err := m.Activate(context.Background(), "hunter2"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	half := PolicyFor(ModeBypass).InactivityTimeout / 2
	clock.advance(half)
	if err := m.UpdateActivity(); err != nil {
		t.Fatalf("UpdateActivity: %v", err)
	}
	clock.advance(half)
	if !m.IsActive() {
		t.Error("expected UpdateActivity to have reset the inactivity dead-bolt")
	}
}

func TestManagerDeactivateLocksImmediately(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := testManager(t, ModeBypass, clock, "hunter2")

	if err := m.Activate(context.Background(), "hunter2"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := m.Deactivate(); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if m.IsActive() {
		t.Error("expected mode to be locked after Deactivate")
	}
}

func TestManagerRateLimitsRepeatedFailures(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := testManager(t, ModeBypass, clock, "hunter2")

	for i := 0; i < 2; i++ {
		if err := m.Activate(context.Background(), "wrong"); !errors.Is(err, ErrInvalidPassphrase) {
			t.Fatalf("attempt %d: expected ErrInvalidPassphrase, got %v", i, err)
		}
	}

	err := m.Activate(context.Background(), "wrong")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on the third failure, got %v", err)
	}

	clock.advance(60 * time.Second)
	if err := m.Activate(context.Background(), "hunter2"); err != nil {
		t.Fatalf("expected activation to succeed once the lockout window elapses, got %v", err)
	}
}

func TestManagerBiometricSatisfiesActivation(t *testing.T) {
	t.Setenv("SUPERADMIN_MOCK_AUTH", "approve")
	clock := &fakeClock{t: time.Now()}
	m, err := NewManager(ModeSuperAdmin, t.TempDir(),
		WithClock(clock.now),
		WithTTYCheck(alwaysTTY),
		WithBiometric(MockProvider{}),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := m.Activate(context.Background(), ""); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !m.IsActive() {
		t.Error("expected biometric approval to activate the mode without a passphrase")
	}
}

func TestManagerBiometricDenialRecordsFailure(t *testing.T) {
	t.Setenv("SUPERADMIN_MOCK_AUTH", "deny")
	clock := &fakeClock{t: time.Now()}
	m, err := NewManager(ModeSuperAdmin, t.TempDir(),
		WithClock(clock.now),
		WithTTYCheck(alwaysTTY),
		WithBiometric(MockProvider{}),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := m.Activate(context.Background(), ""); !errors.Is(err, ErrBiometricDenied) {
		t.Fatalf("expected ErrBiometricDenied, got %v", err)
	}
	rec, err := m.store.ReadFailures()
	if err != nil {
		t.Fatalf("ReadFailures: %v", err)
	}
	if rec.Count != 1 {
		t.Errorf("failure count = %d, want 1 after a biometric denial", rec.Count)
	}
}
