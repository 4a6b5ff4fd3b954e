package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/attendly/internal/auth"
	"github.com/BradenHooton/attendly/internal/models"
	"github.com/BradenHooton/attendly/internal/repositories"
	pkgauth "github.com/BradenHooton/attendly/pkg/auth"
	pkglogger "github.com/BradenHooton/attendly/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUA       = "Mozilla/5.0 (test)"
	testPassword = "Secret#123"
)

// fakeAccountRepository is an in-memory AccountRepository. The *Func fields,
// when set, replace the default behaviour to inject failures.
type fakeAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account

	GetByUsernameFunc func(ctx context.Context, username string) (*models.Account, error)
	UsernameTakenFunc func(ctx context.Context, username string) (bool, error)
	CreateFunc        func(ctx context.Context, account *models.Account) (*models.Account, error)
	IncrementFunc     func(ctx context.Context, id string) (int, error)
	ResetFunc         func(ctx context.Context, id string) error
}

func newFakeAccountRepository() *fakeAccountRepository {
	return &fakeAccountRepository{accounts: make(map[string]*models.Account)}
}

func (f *fakeAccountRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	if f.GetByUsernameFunc != nil {
		return f.GetByUsernameFunc(ctx, username)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeAccountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	if f.UsernameTakenFunc != nil {
		return f.UsernameTakenFunc(ctx, username)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if strings.EqualFold(a.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccountRepository) List(_ context.Context, limit, offset int) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		c := *a
		out = append(out, &c)
	}
	if offset >= len(out) {
		return []*models.Account{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, account)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if strings.EqualFold(a.Username, account.Username) {
			return nil, models.ErrConflict
		}
	}
	account.ID = uuid.New().String()
	account.IsActive = true
	account.LoginAttempts = 0
	account.CreatedAt = time.Now()
	c := *account
	f.accounts[account.ID] = &c
	return account, nil
}

func (f *fakeAccountRepository) IncrementLoginAttempts(ctx context.Context, id string) (int, error) {
	if f.IncrementFunc != nil {
		return f.IncrementFunc(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return 0, models.ErrNotFound
	}
	a.LoginAttempts++
	return a.LoginAttempts, nil
}

func (f *fakeAccountRepository) ResetLoginAttempts(ctx context.Context, id string) error {
	if f.ResetFunc != nil {
		return f.ResetFunc(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	a.LoginAttempts = 0
	return nil
}

func (f *fakeAccountRepository) SetActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	a.IsActive = active
	return nil
}

// seed stores an account with a MinCost hash of password
func (f *fakeAccountRepository) seed(t *testing.T, username, password string) *models.Account {
	t.Helper()
	hash, err := pkgauth.HashPasswordWithCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	a := &models.Account{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         models.DefaultRole,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	f.mu.Lock()
	f.accounts[a.ID] = a
	f.mu.Unlock()
	c := *a
	return &c
}

func (f *fakeAccountRepository) attempts(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id].LoginAttempts
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// failingDeleteStore wraps a session store whose Delete always fails
type failingDeleteStore struct {
	*repositories.SessionRepository
}

func (s failingDeleteStore) Delete(context.Context, string) error {
	return errors.New("session store unavailable")
}

// testEnv wires the services against in-memory stores and a shared fake clock
type testEnv struct {
	repo     *fakeAccountRepository
	store    *repositories.SessionRepository
	sessions *auth.SessionManager
	lockout  *LockoutService
	auth     *AuthService
	accounts *AccountService
	clock    *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := pkglogger.NewAuditLogger(logger)
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	repo := newFakeAccountRepository()
	store := repositories.NewSessionRepository(time.Hour).WithClock(clock.Now)
	csrf := auth.NewCSRFGuard()
	sessions := auth.NewSessionManager(store, csrf, auth.SessionConfig{
		IdleTimeout:        30 * time.Minute,
		RegenerateInterval: 15 * time.Minute,
		Cookie:             auth.CookieConfig{Name: "test_session"},
	}, logger).WithClock(clock.Now)

	lockout := NewLockoutService(repo, LockoutConfig{
		MaxSessionAttempts: 5,
		AttemptWindow:      5 * time.Minute,
		MaxAccountAttempts: 10,
	}, logger)
	lockout.now = clock.Now

	timing := auth.NewTimingDelay(auth.TimingConfig{BcryptCost: bcrypt.MinCost})

	return &testEnv{
		repo:     repo,
		store:    store,
		sessions: sessions,
		lockout:  lockout,
		auth:     NewAuthService(repo, sessions, lockout, timing, logger, audit),
		accounts: NewAccountService(repo, csrf, bcrypt.MinCost, logger, audit),
		clock:    clock,
	}
}

func (e *testEnv) newSession(t *testing.T) *models.Session {
	t.Helper()
	sess, err := e.sessions.New()
	require.NoError(t, err)
	require.NoError(t, e.store.Save(context.Background(), sess))
	return sess
}

func loginRequest(sess *models.Session, username, password string) FormRequest {
	return FormRequest{
		Method: http.MethodPost,
		Form: url.Values{
			"username":   {username},
			"password":   {password},
			"csrf_token": {sess.CSRFToken},
		},
		UserAgent: testUA,
		IPAddress: "192.0.2.10",
	}
}

func registerRequest(sess *models.Session, username, password, confirm string) FormRequest {
	return FormRequest{
		Method: http.MethodPost,
		Form: url.Values{
			"username":         {username},
			"password":         {password},
			"confirm_password": {confirm},
			"csrf_token":       {sess.CSRFToken},
		},
		UserAgent: testUA,
		IPAddress: "192.0.2.10",
	}
}
