package service

import (
	"time"

	"github.com/ehealth-platform/identity-service/internal/model"
)

// Policy holds the account-security knobs.  Its checks are pure functions
// over account state; the mutation points (failed-attempt counter, lockout
// arming) live on the user directory and are invoked by the session manager.
type Policy struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
}

// LockoutState reports whether an account is currently locked and, if so,
// when a retry becomes possible.
type LockoutState struct {
	Locked     bool
	RetryAfter time.Time
}

// CheckLockout: locked iff lockout_until is set and still in the future.
// An expired window reopens the account without touching the counter.
func (p Policy) CheckLockout(u *model.User) LockoutState {
	if u.LockoutUntil != nil && u.LockoutUntil.After(time.Now().UTC()) {
		return LockoutState{Locked: true, RetryAfter: *u.LockoutUntil}
	}
	return LockoutState{}
}

// CheckStatus gates login by administrative account state.  Each failure
// carries the user-facing reason; suspension and deletion keep distinct
// messages.
func (p Policy) CheckStatus(u *model.User) (bool, string) {
	switch u.AccountStatus {
	case model.StatusSuspended:
		return false, "Your account has been suspended. Please contact support."
	case model.StatusDeleted:
		return false, "This account has been deleted."
	}
	if !u.IsActive {
		return false, "Your account is inactive. Please contact support."
	}
	return true, ""
}
