package privilege

import "time"

// Mode identifies one of the two privilege escalation tracks.
type Mode string

const (
	ModeBypass     Mode = "bypass"
	ModeSuperAdmin Mode = "superadmin"
)

// DurationPolicy bounds how long an activation may remain valid and how
// long it may sit idle before the inactivity dead-bolt locks it again.
type DurationPolicy struct {
	MaxDuration       time.Duration
	InactivityTimeout time.Duration
}

var durationPolicies = map[Mode]DurationPolicy{
	ModeBypass:     {MaxDuration: 4 * time.Hour, InactivityTimeout: 30 * time.Minute},
	ModeSuperAdmin: {MaxDuration: 20 * time.Minute, InactivityTimeout: 5 * time.Minute},
}

// PolicyFor returns the duration policy for a mode.
func PolicyFor(mode Mode) DurationPolicy {
	return durationPolicies[mode]
}

// FailureRecord tracks consecutive activation failures for the lockout
// schedule; it resets to zero on the next successful activation.
type FailureRecord struct {
	Count       int       `json:"count"`
	LastFailure time.Time `json:"last_failure"`
}
