package service

import (
	"errors"
	"fmt"
	"time"
)

// Business-rule failures the handlers translate into HTTP responses.  Bad
// credentials and unknown emails share one sentinel so responses never leak
// account existence.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token")
	ErrIdentityVerification = errors.New("identity verification failed")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailAlreadyVerified = errors.New("email is already verified")
	ErrVerificationNotFound = errors.New("invalid or already used verification token")
	ErrVerificationExpired  = errors.New("verification link has expired")
)

// AccountLockedError is returned when a login hits an active lockout window,
// or when the failing attempt itself armed the lock (JustLocked).
type AccountLockedError struct {
	Until      time.Time
	JustLocked bool
	LockedFor  time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// Message is the user-facing lockout text, including the retry-after time.
func (e *AccountLockedError) Message() string {
	if e.JustLocked {
		return fmt.Sprintf("Too many failed login attempts. Account locked for %d minutes.",
			int(e.LockedFor.Minutes()))
	}
	return fmt.Sprintf("Account is locked. Try again after %s", e.Until.UTC().Format("2006-01-02 15:04:05"))
}

// AccountStateError carries the status-check reason (suspended, deleted,
// inactive) verbatim to the client.
type AccountStateError struct {
	Reason string
}

func (e *AccountStateError) Error() string { return e.Reason }
