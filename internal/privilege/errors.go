package privilege

import "errors"

var (
	// ErrNotTTY is returned when activation is attempted with stdin not
	// bound to a terminal (e.g. piped input), per spec: never prompt a pipe.
	ErrNotTTY = errors.New("privilege: stdin is not a TTY, refusing to prompt")

	// ErrRateLimited is returned while the lockout schedule is in effect.
	ErrRateLimited = errors.New("privilege: rate limited")

	// ErrInvalidPassphrase is returned when the passphrase or biometric
	// check fails.
	ErrInvalidPassphrase = errors.New("privilege: invalid passphrase")

	// ErrNotActive is returned by operations that require an active
	// privilege (e.g. UpdateActivity) when the mode is currently locked.
	ErrNotActive = errors.New("privilege: mode is not active")

	// ErrTokenExpired is returned (and logged) when a stale token's
	// expiry has passed; the mode auto-deactivates.
	ErrTokenExpired = errors.New("privilege: token expired")

	// ErrTokenInvalid is returned when a token's HMAC no longer verifies
	// against the current key material; the mode auto-deactivates.
	ErrTokenInvalid = errors.New("privilege: token HMAC invalid")

	// ErrInactivityTimeout is returned when the inactivity dead-bolt has
	// tripped; the mode auto-deactivates.
	ErrInactivityTimeout = errors.New("privilege: inactivity dead-bolt tripped")

	// ErrBiometricUnavailable is returned by a BiometricProvider when no
	// platform sensor or helper is reachable; callers fall back to a
	// passphrase prompt.
	ErrBiometricUnavailable = errors.New("privilege: biometric authentication unavailable")

	// ErrBiometricDenied is returned when the platform biometric check
	// ran but did not confirm the user.
	ErrBiometricDenied = errors.New("privilege: biometric authentication denied")
)
