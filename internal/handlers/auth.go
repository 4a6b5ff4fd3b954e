package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/attendly/internal/auth"
	"github.com/BradenHooton/attendly/internal/models"
	"github.com/BradenHooton/attendly/internal/services"
	pkghttp "github.com/BradenHooton/attendly/pkg/http"
)

const (
	RegisterPath = "/register"

	MsgRateLimited = "Too many requests. Please wait a minute and try again."

	maxFormBytes = 1 << 16
)

// AuthServiceInterface defines the interface for login session business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, sess *models.Session, req services.FormRequest) (string, error)
	Logout(ctx context.Context, sess *models.Session, req services.FormRequest) (*models.Session, error)
	ResetAttempts(sess *models.Session, req services.FormRequest)
}

// RegistrationServiceInterface defines the interface for account signup
type RegistrationServiceInterface interface {
	Register(ctx context.Context, sess *models.Session, req services.FormRequest) error
}

// AuthHandler serves the login, registration and logout actions and their pages.
// Every action ends with the session saved and a redirect; flash messages carry the outcome.
type AuthHandler struct {
	service      AuthServiceInterface
	registration RegistrationServiceInterface
	sessions     *auth.SessionManager
	pages        *Pages
	ipConfig     *pkghttp.IPConfig
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service AuthServiceInterface,
	registration RegistrationServiceInterface,
	sessions *auth.SessionManager,
	pages *Pages,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		registration: registration,
		sessions:     sessions,
		pages:        pages,
		ipConfig:     ipConfig,
		logger:       logger,
	}
}

// LoginPage handles GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	if sess.IsLoggedIn {
		pkghttp.Redirect(w, r, services.DashboardPath)
		return
	}

	data := pageData{
		Title:     "Login",
		CSRFToken: sess.CSRFToken,
		Flash:     sess.TakeFlash(),
		Username:  sess.TakeLastUsername(),
	}
	if !h.commit(w, r, sess) {
		return
	}
	h.renderPage(w, h.pages.login, data)
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	target, err := h.service.Login(r.Context(), sess, h.formRequest(w, r))
	if err != nil {
		sess.SetFlash(models.FlashError, models.UserMessage(err))
		target = auth.LoginPath
	}

	if h.commit(w, r, sess) {
		pkghttp.Redirect(w, r, target)
	}
}

// RegisterPage handles GET /register
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	data := pageData{
		Title:     "Register",
		CSRFToken: sess.CSRFToken,
		Flash:     sess.TakeFlash(),
		Username:  sess.TakeFormData()["username"],
	}
	if !h.commit(w, r, sess) {
		return
	}
	h.renderPage(w, h.pages.register, data)
}

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	target := auth.LoginPath
	if err := h.registration.Register(r.Context(), sess, h.formRequest(w, r)); err != nil {
		sess.SetFlash(models.FlashError, models.UserMessage(err))
		target = RegisterPath
	}

	if h.commit(w, r, sess) {
		pkghttp.Redirect(w, r, target)
	}
}

// Logout handles GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	fresh, err := h.service.Logout(r.Context(), sess, h.formRequest(w, r))
	h.sessions.ExpireCookie(w, r)
	if err != nil {
		pkghttp.Redirect(w, r, auth.LoginPath)
		return
	}

	if h.commit(w, r, fresh) {
		pkghttp.Redirect(w, r, auth.LoginPath)
	}
}

// ResetAttempts handles GET /reset_attempts
func (h *AuthHandler) ResetAttempts(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	h.service.ResetAttempts(sess, h.formRequest(w, r))

	if h.commit(w, r, sess) {
		pkghttp.Redirect(w, r, auth.LoginPath)
	}
}

// RateLimited answers requests rejected by the per-IP limiter with the form they came from
func (h *AuthHandler) RateLimited(w http.ResponseWriter, r *http.Request) {
	target := auth.LoginPath
	if r.URL.Path == RegisterPath {
		target = RegisterPath
	}

	h.logger.Warn("request rate limited",
		slog.String("path", r.URL.Path),
		slog.String("client_ip", pkghttp.ExtractClientIP(r, h.ipConfig)),
	)

	sess := auth.SessionFromContext(r.Context())
	if sess == nil {
		pkghttp.WriteError(w, http.StatusTooManyRequests, "rate_limited", MsgRateLimited)
		return
	}
	sess.SetFlash(models.FlashError, MsgRateLimited)
	if h.commit(w, r, sess) {
		pkghttp.Redirect(w, r, target)
	}
}

// Dashboard handles GET /dashboard. Only reachable through the session gate.
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	data := pageData{
		Title:     "Dashboard",
		CSRFToken: sess.CSRFToken,
		Current:   sess.Current(),
	}
	if data.Flash = sess.TakeFlash(); data.Flash != nil && !h.commit(w, r, sess) {
		return
	}
	h.renderPage(w, h.pages.dashboard, data)
}

// formRequest reduces the request to what the services need
func (h *AuthHandler) formRequest(w http.ResponseWriter, r *http.Request) services.FormRequest {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse form", slog.Any("error", err))
	}

	return services.FormRequest{
		Method:    r.Method,
		Form:      r.PostForm,
		UserAgent: r.UserAgent(),
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
	}
}

func (h *AuthHandler) commit(w http.ResponseWriter, r *http.Request, sess *models.Session) bool {
	if err := h.sessions.Commit(r.Context(), w, r, sess); err != nil {
		h.logger.Error("failed to save session", slog.Any("error", err))
		pkghttp.WriteInternalError(w, models.MsgTryAgainLater)
		return false
	}
	return true
}

func (h *AuthHandler) renderPage(w http.ResponseWriter, page *template.Template, data pageData) {
	if err := h.pages.render(w, page, data); err != nil {
		h.logger.Error("failed to render page", slog.String("page", data.Title), slog.Any("error", err))
	}
}
