package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAccountInactive signals that the account has been deactivated by an admin.
	ErrAccountInactive = errors.New("auth: account is inactive")
	// ErrInvalidOrExpiredToken is returned when a reset token is unknown, expired,
	// or already consumed.
	ErrInvalidOrExpiredToken = errors.New("auth: invalid or expired reset token")
)

// InvalidCredentialsError is returned on a failed login. The live attempt count
// is part of the message, matching the behaviour callers depend on.
type InvalidCredentialsError struct {
	Attempts  int
	Threshold int
}

func (e *InvalidCredentialsError) Error() string {
	if e.Attempts <= 0 {
		return "invalid email/username or password"
	}
	return fmt.Sprintf("invalid email/username or password (attempt %d/%d)", e.Attempts, e.Threshold)
}

// LockedError is returned when the account is inside its lockout window. It
// carries the remaining minutes (rounded up, never below 1) and the absolute
// unlock time.
type LockedError struct {
	Until     time.Time
	Remaining int
}

// NewLockedError computes the remaining-minutes hint from now and until.
func NewLockedError(now, until time.Time) *LockedError {
	remaining := 0
	if d := until.Sub(now); d > 0 {
		remaining = int((d + time.Minute - 1) / time.Minute)
	}
	if remaining < 1 {
		remaining = 1
	}
	return &LockedError{Until: until, Remaining: remaining}
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked. try again in %d minute(s) (unlocks at %s)",
		e.Remaining, e.Until.UTC().Format(time.RFC3339))
}
