package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/attendly/internal/auth"
	"github.com/BradenHooton/attendly/internal/models"
	pkgauth "github.com/BradenHooton/attendly/pkg/auth"
	pkglogger "github.com/BradenHooton/attendly/pkg/logger"
)

const (
	DashboardPath = "/dashboard"

	MsgLoggedOut     = "You have been successfully logged out"
	MsgAttemptsReset = "Login attempts have been reset. You can try logging in again."
)

// AuthService handles login, logout and the self-service throttle reset
type AuthService struct {
	accounts    AccountRepository
	sessions    *auth.SessionManager
	lockout     *LockoutService
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(
	accounts AccountRepository,
	sessions *auth.SessionManager,
	lockout *LockoutService,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		accounts:    accounts,
		sessions:    sessions,
		lockout:     lockout,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login authenticates the session and returns where to send the client.
//
// Checks run in a fixed order and stop at the first failure: method, CSRF token,
// input format, account lock, session throttle, then the password. Unknown
// usernames and wrong passwords produce the same error and take the same time.
// The session is mutated in place; the caller persists it whatever the outcome.
func (s *AuthService) Login(ctx context.Context, sess *models.Session, req FormRequest) (string, error) {
	start := time.Now()

	if req.Method != http.MethodPost {
		return "", models.NewAuthError(models.ErrMethodNotAllowed, models.MsgInvalidRequestMethod)
	}

	if err := verifyCSRF(s.sessions.CSRF(), sess, req); err != nil {
		if errors.Is(err, models.ErrCSRF) {
			s.auditFailure(req, "", "", "csrf")
			return "", err
		}
		return "", s.storageError("failed to issue csrf token", err)
	}

	form := loginForm{
		Username: strings.TrimSpace(req.field("username")),
		Password: req.field("password"),
	}
	sess.LastUsername = form.Username

	if err := validateForm(form, MsgLoginFieldsRequired); err != nil {
		s.auditFailure(req, "", form.Username, "validation")
		return "", err
	}

	account, err := s.accounts.GetByUsername(ctx, form.Username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return "", s.storageError("failed to look up account", err)
		}
		account = nil
	}

	if err := s.lockout.CheckAccount(account); err != nil {
		s.auditFailure(req, account.ID, form.Username, "account_locked")
		return "", err
	}
	if err := s.lockout.CheckSession(sess); err != nil {
		s.auditFailure(req, accountID(account), form.Username, "too_many_attempts")
		return "", err
	}

	if account == nil || pkgauth.ComparePassword(account.PasswordHash, form.Password) != nil {
		if account == nil {
			s.timing.CompareDummy(form.Password)
		}
		s.timing.WaitFrom(start)

		if err := s.lockout.RecordFailure(ctx, sess, account); err != nil {
			return "", s.storageError("failed to record login failure", err)
		}
		if err := s.lockout.CheckSession(sess); err != nil {
			s.auditFailure(req, accountID(account), form.Username, "too_many_attempts")
			return "", err
		}

		s.auditFailure(req, accountID(account), form.Username, "invalid_credentials")
		return "", models.NewAuthError(models.ErrInvalidCredentials, models.MsgInvalidCredentials)
	}

	if err := s.sessions.Authenticate(ctx, sess, account, req.UserAgent); err != nil {
		return "", s.storageError("failed to establish session", err)
	}
	// The session is already promoted; a failed counter reset is logged, not surfaced.
	if err := s.lockout.RecordSuccess(ctx, sess, account); err != nil {
		s.logger.Error("failed to reset login attempts",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}
	sess.LastUsername = ""

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: account.ID,
		Username:  account.Username,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Success:   true,
	})

	return DashboardPath, nil
}

// Logout destroys sess and returns a new anonymous session carrying the farewell flash
func (s *AuthService) Logout(ctx context.Context, sess *models.Session, req FormRequest) (*models.Session, error) {
	current, wasLoggedIn := sess.Current(), sess.IsLoggedIn

	if err := s.sessions.Destroy(ctx, sess); err != nil {
		s.logger.Error("failed to destroy session", slog.Any("error", err))
	}

	fresh, err := s.sessions.New()
	if err != nil {
		return nil, s.storageError("failed to start session", err)
	}
	fresh.SetFlash(models.FlashSuccess, MsgLoggedOut)

	if wasLoggedIn {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "logout",
			AccountID: current.AdminID,
			Username:  current.Username,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			Success:   true,
		})
	}
	return fresh, nil
}

// ResetAttempts clears the session throttle only; the account counter is untouched
func (s *AuthService) ResetAttempts(sess *models.Session, req FormRequest) {
	s.lockout.ResetSession(sess)
	sess.SetFlash(models.FlashSuccess, MsgAttemptsReset)

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "attempts_reset",
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Success:   true,
	})
}

func (s *AuthService) auditFailure(req FormRequest, accountID, username, reason string) {
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		AccountID:     accountID,
		Username:      username,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		Success:       false,
		FailureReason: reason,
	})
}

func (s *AuthService) storageError(msg string, err error) error {
	s.logger.Error(msg, slog.Any("error", err))
	return models.NewAuthError(models.ErrStorage, models.MsgTryAgainLater)
}

// verifyCSRF checks the submitted token and rotates it either way, so each
// token authorises at most one state transition
func verifyCSRF(guard *auth.CSRFGuard, sess *models.Session, req FormRequest) error {
	ok := guard.Verify(sess, req.field("csrf_token"))
	if err := guard.Issue(sess); err != nil {
		return err
	}
	if !ok {
		return models.NewAuthError(models.ErrCSRF, models.MsgInvalidSession)
	}
	return nil
}

func accountID(account *models.Account) string {
	if account == nil {
		return ""
	}
	return account.ID
}
