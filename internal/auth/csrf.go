package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/BradenHooton/attendly/internal/models"
)

// tokenBytes gives 256 bits of entropy for both session identifiers and CSRF tokens
const tokenBytes = 32

// CSRFGuard issues and verifies the anti-forgery token bound to a session
type CSRFGuard struct {
	random io.Reader
}

// NewCSRFGuard creates a guard backed by crypto/rand
func NewCSRFGuard() *CSRFGuard {
	return &CSRFGuard{random: rand.Reader}
}

// Issue stores a fresh token on the session, replacing any prior one
func (g *CSRFGuard) Issue(sess *models.Session) error {
	token, err := g.newToken()
	if err != nil {
		return fmt.Errorf("failed to generate csrf token: %w", err)
	}
	sess.CSRFToken = token
	return nil
}

// Verify reports whether supplied matches the session token.
// A missing token on either side is a failure.
func (g *CSRFGuard) Verify(sess *models.Session, supplied string) bool {
	if sess == nil || sess.CSRFToken == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(supplied)) == 1
}

func (g *CSRFGuard) newToken() (string, error) {
	return generateSecureToken(g.random)
}

func generateSecureToken(r io.Reader) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
