package models

import (
	"maps"
	"time"
)

// FlashKind selects the one-shot message slot
type FlashKind string

const (
	FlashError   FlashKind = "error"
	FlashSuccess FlashKind = "success"
)

// Flash is a message shown once on the next rendered page
type Flash struct {
	Kind    FlashKind
	Message string
}

// Session is the server-side record behind the session cookie.
//
// A session is either anonymous (IsLoggedIn false, no identity fields) or
// authenticated (IsLoggedIn true with AdminID, Role and UserAgentFingerprint set).
// AttemptCount and LastAttemptAt hold the transient login throttle.
type Session struct {
	ID                   string
	AdminID              string
	Username             string
	Role                 string
	IsLoggedIn           bool
	CSRFToken            string
	CreatedAt            time.Time
	LastActivity         time.Time
	UserAgentFingerprint string

	AttemptCount  int
	LastAttemptAt time.Time

	Flash        *Flash
	LastUsername string
	FormData     map[string]string
}

// Clone returns a deep copy safe to hand across the store boundary
func (s *Session) Clone() *Session {
	c := *s
	if s.Flash != nil {
		f := *s.Flash
		c.Flash = &f
	}
	if s.FormData != nil {
		c.FormData = maps.Clone(s.FormData)
	}
	return &c
}

// ResetAttempts clears the transient login throttle
func (s *Session) ResetAttempts() {
	s.AttemptCount = 0
	s.LastAttemptAt = time.Time{}
}

// SetFlash replaces the one-shot message
func (s *Session) SetFlash(kind FlashKind, message string) {
	s.Flash = &Flash{Kind: kind, Message: message}
}

// TakeFlash returns the pending message and clears it
func (s *Session) TakeFlash() *Flash {
	f := s.Flash
	s.Flash = nil
	return f
}

// TakeLastUsername returns the username kept for login form repopulation and clears it
func (s *Session) TakeLastUsername() string {
	u := s.LastUsername
	s.LastUsername = ""
	return u
}

// TakeFormData returns the registration form repopulation data and clears it
func (s *Session) TakeFormData() map[string]string {
	d := s.FormData
	s.FormData = nil
	return d
}

// CurrentSession is the read-only view handed to the data-entry layer
type CurrentSession struct {
	AdminID  string
	Username string
	Role     string
}

// Current returns the identity view of an authenticated session
func (s *Session) Current() CurrentSession {
	return CurrentSession{AdminID: s.AdminID, Username: s.Username, Role: s.Role}
}
