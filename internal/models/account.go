package models

import "time"

// DefaultRole is assigned to every provisioned account
const DefaultRole = "admin"

// Account is a persisted administrator login.
// Username uniqueness is case-insensitive; lookups for login use the exact name.
type Account struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	IsActive      bool      `json:"is_active"`
	LoginAttempts int       `json:"login_attempts"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsLocked reports whether the account is refused at login regardless of credentials
func (a *Account) IsLocked(maxAttempts int) bool {
	return !a.IsActive || a.LoginAttempts >= maxAttempts
}
