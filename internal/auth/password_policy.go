package auth

import (
	"fmt"
	"unicode"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// PolicyError describes why a candidate password was rejected.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password policy: %s", e.Reason)
}

// ValidatePassword enforces the password policy: 8 to 128 characters, at least
// one letter and at least one digit.
func ValidatePassword(password string) error {
	length := len([]rune(password))
	if length < minPasswordLength || length > maxPasswordLength {
		return &PolicyError{Reason: fmt.Sprintf("length must be between %d and %d characters", minPasswordLength, maxPasswordLength)}
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter {
		return &PolicyError{Reason: "must contain at least one letter"}
	}
	if !hasDigit {
		return &PolicyError{Reason: "must contain at least one digit"}
	}
	return nil
}
