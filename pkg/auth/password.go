package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost          = 14 // OWASP 2026 recommendation
	MinPasswordLen      = 8
	MaxPasswordLen      = 72 // bcrypt input limit in bytes
	MinLoginPasswordLen = 6
	MaxUsernameLen      = 64

	// SpecialCharacters is the punctuation set a password must draw from
	SpecialCharacters = `!@#$%^&*()-_=+{};:,<.>`
)

// Policy messages, checked and reported in this order
const (
	MsgUsernameFormat   = "Username can only contain letters, numbers, underscores, and hyphens"
	MsgUsernameTooLong  = "Username must be at most 64 characters long"
	MsgPasswordTooShort = "Password must be at least 8 characters long"
	MsgPasswordTooLong  = "Password must be at most 72 characters long"
	MsgPasswordUpper    = "Password must contain at least one uppercase letter"
	MsgPasswordLower    = "Password must contain at least one lowercase letter"
	MsgPasswordDigit    = "Password must contain at least one number"
	MsgPasswordSpecial  = "Password must contain at least one special character"
	MsgLoginPasswordLen = "Password must be at least 6 characters long"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// PolicyError reports the first credential rule that was not met
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string {
	return e.Message
}

// ValidUsername reports whether username uses only the allowed characters
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidateUsername checks the username format shared by login and registration
func ValidateUsername(username string) error {
	if !ValidUsername(username) {
		return &PolicyError{Message: MsgUsernameFormat}
	}
	if len(username) > MaxUsernameLen {
		return &PolicyError{Message: MsgUsernameTooLong}
	}
	return nil
}

// MeetsLoginFloor is the weak length check applied at login. Full strength
// rules are enforced only when an account is created.
func MeetsLoginFloor(password string) bool {
	return len(password) >= MinLoginPasswordLen
}

// ValidatePassword enforces the registration strength rules and returns the
// first unmet rule rather than all of them.
func ValidatePassword(password string) error {
	rules := []struct {
		ok  func(string) bool
		msg string
	}{
		{func(p string) bool { return len(p) >= MinPasswordLen }, MsgPasswordTooShort},
		{func(p string) bool { return len(p) <= MaxPasswordLen }, MsgPasswordTooLong},
		{hasRange('A', 'Z'), MsgPasswordUpper},
		{hasRange('a', 'z'), MsgPasswordLower},
		{hasRange('0', '9'), MsgPasswordDigit},
		{func(p string) bool { return strings.ContainsAny(p, SpecialCharacters) }, MsgPasswordSpecial},
	}

	for _, rule := range rules {
		if !rule.ok(password) {
			return &PolicyError{Message: rule.msg}
		}
	}
	return nil
}

func hasRange(lo, hi rune) func(string) bool {
	return func(p string) bool {
		for _, r := range p {
			if r >= lo && r <= hi {
				return true
			}
		}
		return false
	}
}

// HashPasswordWithCost hashes with an explicit bcrypt work factor
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidCost reports whether cost is accepted by bcrypt
func ValidCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return errors.New("bcrypt cost out of range")
	}
	return nil
}
