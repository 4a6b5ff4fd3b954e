package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/attendly/internal/models"
)

// SessionStore persists session records by identifier.
// Get returns models.ErrNotFound for unknown or expired identifiers.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, sess *models.Session) error
	Delete(ctx context.Context, id string) error
}

// SessionConfig holds the session lifetime settings
type SessionConfig struct {
	IdleTimeout        time.Duration
	RegenerateInterval time.Duration
	Cookie             CookieConfig
}

// SessionManager drives a session through anonymous, authenticated and expired states
type SessionManager struct {
	store  SessionStore
	csrf   *CSRFGuard
	config SessionConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionManager(store SessionStore, csrf *CSRFGuard, config SessionConfig, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		store:  store,
		csrf:   csrf,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

func (m *SessionManager) Now() time.Time {
	return m.now()
}

func (m *SessionManager) CSRF() *CSRFGuard {
	return m.csrf
}

// Start loads the session named by the request cookie, or begins a new anonymous one.
// Identifiers the store does not know are never adopted.
func (m *SessionManager) Start(ctx context.Context, r *http.Request) (*models.Session, error) {
	if id, ok := GetSessionCookie(r, m.config.Cookie); ok {
		sess, err := m.store.Get(ctx, id)
		switch {
		case err == nil:
			if sess.CSRFToken == "" {
				if err := m.csrf.Issue(sess); err != nil {
					return nil, err
				}
			}
			return sess, nil
		case !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}
	return m.New()
}

// New returns an anonymous session with a fresh identifier and CSRF token
func (m *SessionManager) New() (*models.Session, error) {
	id, err := generateSecureToken(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	now := m.now()
	sess := &models.Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.csrf.Issue(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Commit saves the session and sends its identifier to the client
func (m *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *models.Session) error {
	if err := m.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	SetSessionCookie(w, r, sess.ID, m.config.Cookie)
	return nil
}

// Regenerate moves the session to a new identifier and reissues its CSRF token.
// The old identifier is removed from the store.
func (m *SessionManager) Regenerate(ctx context.Context, sess *models.Session) error {
	id, err := generateSecureToken(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate session id: %w", err)
	}
	oldID := sess.ID

	sess.ID = id
	sess.CreatedAt = m.now()
	if err := m.csrf.Issue(sess); err != nil {
		return err
	}

	if oldID != "" {
		if err := m.store.Delete(ctx, oldID); err != nil {
			return fmt.Errorf("failed to invalidate previous session: %w", err)
		}
	}
	return nil
}

// Authenticate promotes an anonymous session. The identifier is regenerated
// before any identity field is written.
func (m *SessionManager) Authenticate(ctx context.Context, sess *models.Session, account *models.Account, userAgent string) error {
	if err := m.Regenerate(ctx, sess); err != nil {
		return err
	}

	now := m.now()
	sess.AdminID = account.ID
	sess.Username = account.Username
	sess.Role = account.Role
	sess.IsLoggedIn = true
	sess.UserAgentFingerprint = Fingerprint(userAgent)
	sess.CreatedAt = now
	sess.LastActivity = now
	return nil
}

// Validate is the gate in front of every protected page.
//
// It returns models.ErrForbidden for an anonymous session and models.ErrSessionExpired
// after idle timeout or a user agent change; in the expired case the stored record is
// destroyed. A valid session has its activity refreshed and is rotated once the
// regeneration interval has passed since CreatedAt.
func (m *SessionManager) Validate(ctx context.Context, sess *models.Session, userAgent string) error {
	if sess == nil || !sess.IsLoggedIn {
		return models.ErrForbidden
	}

	now := m.now()
	if now.Sub(sess.LastActivity) > m.config.IdleTimeout {
		m.logger.Info("session idle timeout", slog.String("admin_id", sess.AdminID))
		return m.expire(ctx, sess)
	}
	if sess.UserAgentFingerprint != Fingerprint(userAgent) {
		m.logger.Warn("session user agent mismatch", slog.String("admin_id", sess.AdminID))
		return m.expire(ctx, sess)
	}

	sess.LastActivity = now
	if now.Sub(sess.CreatedAt) > m.config.RegenerateInterval {
		if err := m.Regenerate(ctx, sess); err != nil {
			return err
		}
	}
	return nil
}

// Destroy clears the session and removes it from the store.
// Safe on an anonymous session. Pair with ExpireCookie when answering the client.
func (m *SessionManager) Destroy(ctx context.Context, sess *models.Session) error {
	id := sess.ID
	*sess = models.Session{}
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ExpireCookie tells the client to drop its session cookie
func (m *SessionManager) ExpireCookie(w http.ResponseWriter, r *http.Request) {
	ExpireSessionCookie(w, r, m.config.Cookie)
}

func (m *SessionManager) expire(ctx context.Context, sess *models.Session) error {
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		m.logger.Error("failed to delete expired session", slog.Any("error", err))
	}
	*sess = models.Session{}
	return models.ErrSessionExpired
}

// Fingerprint hashes the user agent so the raw header is never stored in the session
func Fingerprint(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}
