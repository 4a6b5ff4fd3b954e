package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/BradenHooton/attendly/internal/models"
)

const MsgAccountLocked = "Too many login attempts. Please try again later or contact an administrator."

// LockoutConfig holds the two login throttle limits
type LockoutConfig struct {
	MaxSessionAttempts int           // failures per browser session before throttling
	AttemptWindow      time.Duration // how long the session counter lives
	MaxAccountAttempts int           // cumulative failures before the account locks
}

// LockoutService combines the transient per-session counter with the durable
// per-account counter kept in the account store
type LockoutService struct {
	repo   AccountRepository
	config LockoutConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewLockoutService(repo AccountRepository, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// CheckAccount rejects a deactivated account or one at the attempt limit.
// A nil account (unknown username) always passes.
func (s *LockoutService) CheckAccount(account *models.Account) error {
	if account == nil || !account.IsLocked(s.config.MaxAccountAttempts) {
		return nil
	}
	return models.NewAuthError(models.ErrAccountLocked, MsgAccountLocked)
}

// CheckSession applies the per-session throttle, clearing the counter once its window has passed
func (s *LockoutService) CheckSession(sess *models.Session) error {
	if sess.AttemptCount == 0 {
		return nil
	}

	elapsed := s.now().Sub(sess.LastAttemptAt)
	if elapsed >= s.config.AttemptWindow {
		sess.ResetAttempts()
		return nil
	}

	if sess.AttemptCount >= s.config.MaxSessionAttempts {
		return tooManyAttempts(s.config.AttemptWindow - elapsed)
	}
	return nil
}

// RecordFailure counts a failed credential check on the session and, for a known
// account, on the durable counter with an atomic increment
func (s *LockoutService) RecordFailure(ctx context.Context, sess *models.Session, account *models.Account) error {
	sess.AttemptCount++
	sess.LastAttemptAt = s.now()

	if account == nil {
		return nil
	}

	attempts, err := s.repo.IncrementLoginAttempts(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	account.LoginAttempts = attempts

	if attempts == s.config.MaxAccountAttempts {
		s.logger.Warn("account locked after repeated failures",
			slog.String("account_id", account.ID),
			slog.Int("attempts", attempts),
		)
	}
	return nil
}

// RecordSuccess clears both counters
func (s *LockoutService) RecordSuccess(ctx context.Context, sess *models.Session, account *models.Account) error {
	sess.ResetAttempts()

	if err := s.repo.ResetLoginAttempts(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	account.LoginAttempts = 0
	return nil
}

// ResetSession clears only the transient counter
func (s *LockoutService) ResetSession(sess *models.Session) {
	sess.ResetAttempts()
}

func tooManyAttempts(remaining time.Duration) *models.AuthError {
	minutes := int(math.Ceil(remaining.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return &models.AuthError{
		Err:        models.ErrTooManyAttempts,
		Message:    fmt.Sprintf("Too many login attempts. Please try again in %d minute(s).", minutes),
		RetryAfter: remaining,
	}
}
