package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/attendly/internal/auth"
	"github.com/BradenHooton/attendly/internal/models"
	pkgauth "github.com/BradenHooton/attendly/pkg/auth"
	pkglogger "github.com/BradenHooton/attendly/pkg/logger"
)

const (
	MsgAccountCreated   = "Account created successfully! You can now login."
	MsgCannotDeactivate = "You cannot deactivate your own account"
)

// AccountRepository defines the account store operations used by the services
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	IncrementLoginAttempts(ctx context.Context, id string) (int, error)
	ResetLoginAttempts(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// AccountService provisions accounts and carries the administrative account operations
type AccountService struct {
	repo        AccountRepository
	csrf        *auth.CSRFGuard
	bcryptCost  int
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAccountService(repo AccountRepository, csrf *auth.CSRFGuard, bcryptCost int, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	return &AccountService{
		repo:        repo,
		csrf:        csrf,
		bcryptCost:  bcryptCost,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Register creates an admin account from the signup form.
//
// The submitted username is kept on the session for repopulation until the
// account is created. On success the session carries the success flash.
func (s *AccountService) Register(ctx context.Context, sess *models.Session, req FormRequest) error {
	if req.Method != http.MethodPost {
		return models.NewAuthError(models.ErrMethodNotAllowed, models.MsgInvalidRequestMethod)
	}

	if err := verifyCSRF(s.csrf, sess, req); err != nil {
		if errors.Is(err, models.ErrCSRF) {
			return err
		}
		return s.storageError("failed to issue csrf token", err)
	}

	form := registerForm{
		Username:        strings.TrimSpace(req.field("username")),
		Password:        req.field("password"),
		ConfirmPassword: req.field("confirm_password"),
	}
	sess.FormData = map[string]string{"username": form.Username}

	if err := validateForm(form, MsgRegisterFieldsRequired); err != nil {
		return err
	}
	if err := pkgauth.ValidatePassword(form.Password); err != nil {
		return models.NewAuthError(models.ErrValidation, err.Error())
	}

	account, err := s.create(ctx, form.Username, form.Password)
	if err != nil {
		return err
	}

	sess.FormData = nil
	sess.SetFlash(models.FlashSuccess, MsgAccountCreated)

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "account_registered",
		AccountID: account.ID,
		Username:  account.Username,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Success:   true,
	})
	return nil
}

// EnsureAccount creates the named account unless one with that name already exists.
// Used to seed the first administrator at startup.
func (s *AccountService) EnsureAccount(ctx context.Context, username, password string) (bool, error) {
	if err := pkgauth.ValidateUsername(username); err != nil {
		return false, fmt.Errorf("bootstrap username: %w", err)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return false, fmt.Errorf("bootstrap password: %w", err)
	}

	if _, err := s.create(ctx, username, password); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// create runs the uniqueness pre-check, hashes the password and inserts atomically.
// The store's unique constraint decides races; both paths yield the same conflict error.
func (s *AccountService) create(ctx context.Context, username, password string) (*models.Account, error) {
	taken, err := s.repo.UsernameTaken(ctx, username)
	if err != nil {
		return nil, s.storageError("failed to check username", err)
	}
	if taken {
		return nil, usernameTaken(username)
	}

	hash, err := pkgauth.HashPasswordWithCost(password, s.bcryptCost)
	if err != nil {
		return nil, s.storageError("failed to hash password", err)
	}

	account, err := s.repo.Create(ctx, &models.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         models.DefaultRole,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, usernameTaken(username)
		}
		return nil, s.storageError("failed to create account", err)
	}
	return account, nil
}

func (s *AccountService) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, s.storageError("failed to list accounts", err)
	}
	return accounts, nil
}

// ResetLoginAttempts is the explicit administrative reset of the durable lock counter
func (s *AccountService) ResetLoginAttempts(ctx context.Context, actor models.CurrentSession, accountID string) error {
	if err := s.repo.ResetLoginAttempts(ctx, accountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return s.storageError("failed to reset login attempts", err)
	}

	s.auditLogger.LogAccountAction("account_attempts_reset", accountID, actor.AdminID, nil)
	return nil
}

// SetActive activates or deactivates an account. Admins cannot deactivate themselves.
func (s *AccountService) SetActive(ctx context.Context, actor models.CurrentSession, accountID string, active bool) error {
	if !active && actor.AdminID == accountID {
		return models.NewAuthError(models.ErrForbidden, MsgCannotDeactivate)
	}

	if err := s.repo.SetActive(ctx, accountID, active); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return s.storageError("failed to update account status", err)
	}

	s.auditLogger.LogAccountAction("account_status_changed", accountID, actor.AdminID,
		map[string]string{"active": fmt.Sprintf("%t", active)})
	return nil
}

func (s *AccountService) storageError(msg string, err error) error {
	s.logger.Error(msg, slog.Any("error", err))
	return models.NewAuthError(models.ErrStorage, models.MsgTryAgainLater)
}

func usernameTaken(username string) error {
	return models.NewAuthError(models.ErrConflict,
		fmt.Sprintf("Username '%s' is already taken. Please choose a different username.", username))
}
