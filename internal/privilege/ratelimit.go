package privilege

import "time"

// bypassLockoutSchedule maps a consecutive-failure count to a lockout
// delay: attempt 1 -> 0s, 2 -> 60s, 3 -> 300s, 4 -> 900s, 5+ -> 3600s.
var bypassLockoutSchedule = []time.Duration{
	0,
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
	3600 * time.Second,
}

// superAdminLockoutSchedule is the stricter schedule for the superadmin
// mode: each step is double the bypass schedule's delay.
var superAdminLockoutSchedule = []time.Duration{
	0,
	120 * time.Second,
	600 * time.Second,
	1800 * time.Second,
	7200 * time.Second,
}

// lockoutDelay returns how long a mode must wait after failureCount
// consecutive activation failures before the next attempt is permitted.
func lockoutDelay(mode Mode, failureCount int) time.Duration {
	schedule := bypassLockoutSchedule
	if mode == ModeSuperAdmin {
		schedule = superAdminLockoutSchedule
	}
	if failureCount <= 0 {
		return 0
	}
	idx := failureCount - 1
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}
