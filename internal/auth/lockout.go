package auth

import (
	"time"

	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
)

// LockState is the lockout state of an account at a point in time.
type LockState int

const (
	// StateActive: counter below threshold, credentials will be evaluated.
	StateActive LockState = iota
	// StateLocked: lock expiry in the future, credentials are not evaluated.
	StateLocked
	// StateExpired: a lock exists but the expiry has passed; counters must be
	// cleared before re-evaluating the credential.
	StateExpired
)

// LockoutPolicy is the pure brute-force state machine. All persistence of its
// decisions happens in the repository so the transitions stay testable.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

func NewLockoutPolicy(threshold int, duration time.Duration) LockoutPolicy {
	if threshold <= 0 {
		threshold = 5
	}
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	return LockoutPolicy{Threshold: threshold, Duration: duration}
}

// Evaluate classifies the account's lock status at now.
func (p LockoutPolicy) Evaluate(acc *account.Account, now time.Time) LockState {
	if acc.LockedUntil == nil {
		return StateActive
	}
	if now.Before(*acc.LockedUntil) {
		return StateLocked
	}
	return StateExpired
}

// ShouldLock reports whether the given failed-attempt count crosses the
// threshold.
func (p LockoutPolicy) ShouldLock(attempts int) bool {
	return attempts >= p.Threshold
}

// RemainingAttempts is surfaced to the caller after a failed credential check.
func (p LockoutPolicy) RemainingAttempts(attempts int) int {
	remaining := p.Threshold - attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LockExpiry computes the expiry for a lock imposed at now.
func (p LockoutPolicy) LockExpiry(now time.Time) time.Time {
	return now.Add(p.Duration)
}

// RemainingMinutes reports whole minutes until the lock expires, rounded up
// so a caller is never told zero minutes on a still-locked account.
func RemainingMinutes(until, now time.Time) int {
	if !now.Before(until) {
		return 0
	}
	return int(until.Sub(now).Seconds()/60) + 1
}
