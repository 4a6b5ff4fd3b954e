package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/attendly/internal/models"
	pkghttp "github.com/BradenHooton/attendly/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for the request's session in context
	SessionContextKey contextKey = "session"

	LoginPath = "/login"

	MsgLoginRequired  = "Please login to access this page"
	MsgSessionExpired = "Session expired. Please login again."
)

// AccountReader is the slice of the account store RequireRole needs
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// LoadSession attaches the request's session (existing or new anonymous) to the context
func LoadSession(sm *SessionManager, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sm.Start(r.Context(), r)
			if err != nil {
				logger.Error("failed to start session", slog.Any("error", err))
				pkghttp.WriteInternalError(w, models.MsgTryAgainLater)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests whose session does not pass SessionManager.Validate.
// Rejected clients get a fresh anonymous session with a flash and are sent to the login page.
// Must be used after LoadSession.
func RequireSession(sm *SessionManager, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			err := sm.Validate(r.Context(), sess, r.UserAgent())
			if err == nil {
				if err := sm.Commit(r.Context(), w, r, sess); err != nil {
					logger.Error("failed to save session", slog.Any("error", err))
					pkghttp.WriteInternalError(w, models.MsgTryAgainLater)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			message := MsgLoginRequired
			if errors.Is(err, models.ErrSessionExpired) {
				message = MsgSessionExpired
				sm.ExpireCookie(w, r)
			} else if !errors.Is(err, models.ErrForbidden) {
				logger.Error("session validation failed", slog.Any("error", err))
				pkghttp.WriteInternalError(w, models.MsgTryAgainLater)
				return
			}

			fresh := sess
			if sess.ID == "" {
				if fresh, err = sm.New(); err != nil {
					logger.Error("failed to start session", slog.Any("error", err))
					pkghttp.WriteInternalError(w, models.MsgTryAgainLater)
					return
				}
			}
			fresh.SetFlash(models.FlashError, message)
			if err := sm.Commit(r.Context(), w, r, fresh); err != nil {
				logger.Error("failed to save session", slog.Any("error", err))
			}
			pkghttp.Redirect(w, r, LoginPath)
		})
	}
}

// RequireRole enforces the role of the logged-in account, read fresh from the store.
// Must be used after RequireSession.
func RequireRole(accounts AccountReader, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil || !sess.IsLoggedIn {
				pkghttp.WriteError(w, http.StatusUnauthorized, "unauthorized", "login required")
				return
			}

			account, err := accounts.GetByID(r.Context(), sess.AdminID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteError(w, http.StatusUnauthorized, "unauthorized", "account not found")
					return
				}
				pkghttp.WriteInternalError(w, models.MsgTryAgainLater)
				return
			}

			if !account.IsActive || account.Role != role {
				pkghttp.WriteError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the session attached by LoadSession
func SessionFromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(SessionContextKey).(*models.Session)
	return sess
}

// CurrentSession returns the logged-in identity, if any
func CurrentSession(ctx context.Context) (models.CurrentSession, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil || !sess.IsLoggedIn {
		return models.CurrentSession{}, false
	}
	return sess.Current(), true
}
