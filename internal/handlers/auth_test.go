package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/BradenHooton/attendly/internal/auth"
	"github.com/BradenHooton/attendly/internal/handlers"
	"github.com/BradenHooton/attendly/internal/models"
	"github.com/BradenHooton/attendly/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAuthService implements handlers.AuthServiceInterface for testing
type mockAuthService struct {
	LoginFunc         func(ctx context.Context, sess *models.Session, req services.FormRequest) (string, error)
	LogoutFunc        func(ctx context.Context, sess *models.Session, req services.FormRequest) (*models.Session, error)
	ResetAttemptsFunc func(sess *models.Session, req services.FormRequest)
}

func (m *mockAuthService) Login(ctx context.Context, sess *models.Session, req services.FormRequest) (string, error) {
	if m.LoginFunc == nil {
		return services.DashboardPath, nil
	}
	return m.LoginFunc(ctx, sess, req)
}

func (m *mockAuthService) Logout(ctx context.Context, sess *models.Session, req services.FormRequest) (*models.Session, error) {
	return m.LogoutFunc(ctx, sess, req)
}

func (m *mockAuthService) ResetAttempts(sess *models.Session, req services.FormRequest) {
	if m.ResetAttemptsFunc != nil {
		m.ResetAttemptsFunc(sess, req)
	}
}

// mockRegistrationService implements handlers.RegistrationServiceInterface for testing
type mockRegistrationService struct {
	RegisterFunc func(ctx context.Context, sess *models.Session, req services.FormRequest) error
}

func (m *mockRegistrationService) Register(ctx context.Context, sess *models.Session, req services.FormRequest) error {
	if m.RegisterFunc == nil {
		return nil
	}
	return m.RegisterFunc(ctx, sess, req)
}

type authFixture struct {
	handler  *handlers.AuthHandler
	sessions *auth.SessionManager
	sess     *models.Session
}

func newAuthFixture(t *testing.T, svc *mockAuthService, reg *mockRegistrationService) *authFixture {
	t.Helper()
	sm, _ := newSessionManager(t)
	pages, err := handlers.NewPages()
	require.NoError(t, err)

	sess, err := sm.New()
	require.NoError(t, err)

	return &authFixture{
		handler:  handlers.NewAuthHandler(svc, reg, sm, pages, nil, discardLogger()),
		sessions: sm,
		sess:     sess,
	}
}

// stored reloads the fixture session as the next request would see it
func (f *authFixture) stored(t *testing.T, id string) *models.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: id})
	sess, err := f.sessions.Start(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, id, sess.ID, "session was not persisted")
	return sess
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "handler-test")
	return req
}

// ── Pages ─────────────────────────────────────────────────────────────────────

func TestLoginPage_RendersTokenAndConsumesFlash(t *testing.T) {
	f := newAuthFixture(t, &mockAuthService{}, &mockRegistrationService{})
	f.sess.SetFlash(models.FlashError, models.MsgInvalidCredentials)
	f.sess.LastUsername = "alice_01"

	w := httptest.NewRecorder()
	f.handler.LoginPage(w, withSession(httptest.NewRequest(http.MethodGet, "/login", nil), f.sess))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `name="csrf_token" value="`+f.sess.CSRFToken+`"`)
	assert.Contains(t, body, models.MsgInvalidCredentials)
	assert.Contains(t, body, `value="alice_01"`)

	cookie := lastCookie(w, testCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, f.sess.ID, cookie.Value)

	stored := f.stored(t, f.sess.ID)
	assert.Nil(t, stored.Flash)
	assert.Empty(t, stored.LastUsername)
}

func TestLoginPage_EscapesRepopulatedUsername(t *testing.T) {
	f := newAuthFixture(t, &mockAuthService{}, &mockRegistrationService{})
	f.sess.LastUsername = `"><script>alert(1)</script>`

	w := httptest.NewRecorder()
	f.handler.LoginPage(w, withSession(httptest.NewRequest(http.MethodGet, "/login", nil), f.sess))

	assert.NotContains(t, w.Body.String(), "<script>alert(1)</script>")
}

func TestLoginPage_LoggedInRedirectsToDashboard(t *testing.T) {
	f := newAuthFixture(t, &mockAuthService{}, &mockRegistrationService{})
	f.sess.IsLoggedIn = true

	w := httptest.NewRecorder()
	f.handler.LoginPage(w, withSession(httptest.NewRequest(http.MethodGet, "/login", nil), f.sess))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, services.DashboardPath, w.Header().Get("Location"))
}

func TestRegisterPage_RepopulatesOnce(t *testing.T) {
	f := newAuthFixture(t, &mockAuthService{}, &mockRegistrationService{})
	f.sess.FormData = map[string]string{"username": "new_admin"}
	f.sess.SetFlash(models.FlashError, services.MsgPasswordMismatch)

	w := httptest.NewRecorder()
	f.handler.RegisterPage(w, withSession(httptest.NewRequest(http.MethodGet, "/register", nil), f.sess))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="new_admin"`)
	assert.Contains(t, w.Body.String(), services.MsgPasswordMismatch)
	assert.Contains(t, w.Body.String(), f.sess.CSRFToken)

	stored := f.stored(t, f.sess.ID)
	assert.Nil(t, stored.FormData)
	assert.Nil(t, stored.Flash)
}

func TestDashboard_ShowsCurrentAccount(t *testing.T) {
	f := newAuthFixture(t, &mockAuthService{}, &mockRegistrationService{})
	f.sess.IsLoggedIn = true
	f.sess.AdminID = "a1"
	f.sess.Username = "root_admin"
	f.sess.Role = models.DefaultRole

	w := httptest.NewRecorder()
	f.handler.Dashboard(w, withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), f.sess))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "root_admin")
	assert.Contains(t, w.Body.String(), `href="/logout"`)
}

// ── Login ─────────────────────────────────────────────────────────────────────

func TestLogin_PassesFormToService(t *testing.T) {
	var got services.FormRequest
	svc := &mockAuthService{
		LoginFunc: func(ctx context.Context, sess *models.Session, req services.FormRequest) (string, error) {
			got = req
			return services.DashboardPath, nil
		},
	}
	f := newAuthFixture(t, svc, &mockRegistrationService{})

	form := url.Values{"username": {"alice_01"}, "password": {"Secret#123"}, "csrf_token": {f.sess.CSRFToken}}
	w := httptest.NewRecorder()
	f.handler.Login(w, withSession(postForm("/login", form), f.sess))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, services.DashboardPath, w.Header().Get("Location"))
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "alice_01", got.Form.Get("username"))
	assert.Equal(t, f.sess.CSRFToken, got.Form.Get("csrf_token"))
	assert.Equal(t, "handler-test", got.UserAgent)
	assert.Equal(t, "192.0.2.1", got.IPAddress)
}

func TestLogin_FailureFlashesAndReturnsToLogin(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"invalid credentials", models.NewAuthError(models.ErrInvalidCredentials, models.MsgInvalidCredentials), models.MsgInvalidCredentials},
		{"csrf", models.NewAuthError(models.ErrCSRF, models.MsgInvalidSession), models.MsgInvalidSession},
		{"unexpected", errors.New("boom"), models.MsgTryAgainLater},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				LoginFunc: func(ctx context.Context, sess *models.Session, req services.FormRequest) (string, error) {
					return "", tt.err
				},
			}
			f := newAuthFixture(t, svc, &mockRegistrationService{})

			w := httptest.NewRecorder()
			f.handler.Login(w, withSession(postForm("/login", url.Values{}), f.sess))

			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, auth.LoginPath, w.Header().Get("Location"))

			stored := f.stored(t, f.sess.ID)
			require.NotNil(t, stored.Flash)
			assert.Equal(t, models.FlashError, stored.Flash.Kind)
			assert.Equal(t, tt.wantMsg, stored.Flash.Message)
		})
	}
}

// ── Register ──────────────────────────────────────────────────────────────────

func TestRegister_FailureReturnsToSignup(t *testing.T) {
	reg := &mockRegistrationService{
		RegisterFunc: func(ctx context.Context, sess *models.Session, req services.FormRequest) error {
			sess.FormData = map[string]string{"username": req.Form.Get("username")}
			return models.NewAuthError(models.ErrValidation, services.MsgPasswordMismatch)
		},
	}
	f := newAuthFixture(t, &mockAuthService{}, reg)

	w := httptest.NewRecorder()
	f.handler.Register(w, withSession(postForm("/register", url.Values{"username": {"bob"}}), f.sess))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, handlers.RegisterPath, w.Header().Get("Location"))

	stored := f.stored(t, f.sess.ID)
	require.NotNil(t, stored.Flash)
	assert.Equal(t, services.MsgPasswordMismatch, stored.Flash.Message)
	assert.Equal(t, "bob", stored.FormData["username"])
}

func TestRegister_SuccessGoesToLogin(t *testing.T) {
	reg := &mockRegistrationService{
		RegisterFunc: func(ctx context.Context, sess *models.Session, req services.FormRequest) error {
			sess.SetFlash(models.FlashSuccess, services.MsgAccountCreated)
			return nil
		},
	}
	f := newAuthFixture(t, &mockAuthService{}, reg)

	w := httptest.NewRecorder()
	f.handler.Register(w, withSession(postForm("/register", url.Values{}), f.sess))

	assert.Equal(t, auth.LoginPath, w.Header().Get("Location"))
	stored := f.stored(t, f.sess.ID)
	require.NotNil(t, stored.Flash)
	assert.Equal(t, models.FlashSuccess, stored.Flash.Kind)
}

// ── Logout / reset ────────────────────────────────────────────────────────────

func TestLogout_SwitchesToFreshSession(t *testing.T) {
	var fresh *models.Session
	svc := &mockAuthService{}
	f := newAuthFixture(t, svc, &mockRegistrationService{})
	svc.LogoutFunc = func(ctx context.Context, sess *models.Session, req services.FormRequest) (*models.Session, error) {
		var err error
		fresh, err = f.sessions.New()
		if err != nil {
			return nil, err
		}
		fresh.SetFlash(models.FlashSuccess, services.MsgLoggedOut)
		return fresh, nil
	}

	w := httptest.NewRecorder()
	f.handler.Logout(w, withSession(httptest.NewRequest(http.MethodGet, "/logout", nil), f.sess))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, auth.LoginPath, w.Header().Get("Location"))

	cookie := lastCookie(w, testCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, fresh.ID, cookie.Value)

	stored := f.stored(t, fresh.ID)
	require.NotNil(t, stored.Flash)
	assert.Equal(t, services.MsgLoggedOut, stored.Flash.Message)
}

func TestLogout_ServiceErrorStillExpiresCookie(t *testing.T) {
	svc := &mockAuthService{
		LogoutFunc: func(ctx context.Context, sess *models.Session, req services.FormRequest) (*models.Session, error) {
			return nil, models.NewAuthError(models.ErrStorage, models.MsgTryAgainLater)
		},
	}
	f := newAuthFixture(t, svc, &mockRegistrationService{})

	w := httptest.NewRecorder()
	f.handler.Logout(w, withSession(httptest.NewRequest(http.MethodGet, "/logout", nil), f.sess))

	assert.Equal(t, auth.LoginPath, w.Header().Get("Location"))
	cookie := lastCookie(w, testCookieName)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestResetAttempts_CommitsAndRedirects(t *testing.T) {
	called := false
	svc := &mockAuthService{
		ResetAttemptsFunc: func(sess *models.Session, req services.FormRequest) {
			called = true
			sess.ResetAttempts()
			sess.SetFlash(models.FlashSuccess, services.MsgAttemptsReset)
		},
	}
	f := newAuthFixture(t, svc, &mockRegistrationService{})
	f.sess.AttemptCount = 5

	w := httptest.NewRecorder()
	f.handler.ResetAttempts(w, withSession(httptest.NewRequest(http.MethodGet, "/reset_attempts", nil), f.sess))

	assert.True(t, called)
	assert.Equal(t, auth.LoginPath, w.Header().Get("Location"))
	stored := f.stored(t, f.sess.ID)
	assert.Zero(t, stored.AttemptCount)
	require.NotNil(t, stored.Flash)
	assert.Equal(t, services.MsgAttemptsReset, stored.Flash.Message)
}

// ── Rate limiting ─────────────────────────────────────────────────────────────

func TestRateLimited_ReturnsToOriginatingForm(t *testing.T) {
	for _, path := range []string{auth.LoginPath, handlers.RegisterPath} {
		t.Run(path, func(t *testing.T) {
			f := newAuthFixture(t, &mockAuthService{}, &mockRegistrationService{})

			w := httptest.NewRecorder()
			f.handler.RateLimited(w, withSession(postForm(path, url.Values{}), f.sess))

			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, path, w.Header().Get("Location"))
			stored := f.stored(t, f.sess.ID)
			require.NotNil(t, stored.Flash)
			assert.Equal(t, handlers.MsgRateLimited, stored.Flash.Message)
		})
	}
}

func TestRateLimited_WithoutSession_Returns429(t *testing.T) {
	f := newAuthFixture(t, &mockAuthService{}, &mockRegistrationService{})

	w := httptest.NewRecorder()
	f.handler.RateLimited(w, postForm("/login", url.Values{}))

	AssertErrorResponse(t, w, http.StatusTooManyRequests, "rate_limited")
}
