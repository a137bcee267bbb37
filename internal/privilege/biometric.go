package privilege

import (
	"context"
	"os"
)

// BiometricProvider authenticates a privilege activation through a
// platform fingerprint sensor or equivalent, as an alternative to a
// typed passphrase.
type BiometricProvider interface {
	// Authenticate blocks until the platform confirms or denies the
	// prompt, or ctx is cancelled. Returns ErrBiometricUnavailable when
	// no sensor is reachable so the caller can fall back to a passphrase.
	Authenticate(ctx context.Context, reason string) error
	// Available reports whether this provider can run on the current host.
	Available() bool
}

// MockProvider honours the SUPERADMIN_MOCK_AUTH environment variable so
// tests and CI, which have no platform biometric sensor, can exercise the
// activation path: unset means unavailable, "deny" denies, any other
// value approves.
type MockProvider struct{}

func (MockProvider) Available() bool {
	return os.Getenv("SUPERADMIN_MOCK_AUTH") != ""
}

func (MockProvider) Authenticate(_ context.Context, _ string) error {
	switch os.Getenv("SUPERADMIN_MOCK_AUTH") {
	case "":
		return ErrBiometricUnavailable
	case "deny":
		return ErrBiometricDenied
	default:
		return nil
	}
}
