package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/attendly/internal/auth"
	"github.com/BradenHooton/attendly/internal/handlers"
	"github.com/BradenHooton/attendly/internal/middleware"
	"github.com/BradenHooton/attendly/internal/models"
	"github.com/BradenHooton/attendly/internal/services"
	pkghttp "github.com/BradenHooton/attendly/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Dependencies are the collaborators the route table wires together
type Dependencies struct {
	Sessions      *auth.SessionManager
	Accounts      auth.AccountReader
	AuthHandler   *handlers.AuthHandler
	AdminHandler  *handlers.AdminHandler
	HealthHandler *handlers.HealthHandler
	AuthRateLimit middleware.RateLimitConfig
	Logger        *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	authHandler := deps.AuthHandler

	router.Get("/health", deps.HealthHandler.Health)
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		pkghttp.Redirect(w, r, services.DashboardPath)
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.LoadSession(deps.Sessions, deps.Logger))

		// Credential endpoints share one per-IP budget
		limiter := middleware.RateLimitByIP(deps.AuthRateLimit, authHandler.RateLimited)

		// Public pages and actions
		r.Get(auth.LoginPath, authHandler.LoginPage)
		r.With(limiter).Post(auth.LoginPath, authHandler.Login)
		r.Get(handlers.RegisterPath, authHandler.RegisterPage)
		r.With(limiter).Post(handlers.RegisterPath, authHandler.Register)
		r.Get("/logout", authHandler.Logout)
		r.Get("/reset_attempts", authHandler.ResetAttempts)

		// Protected routes - valid session required
		r.Group(func(r chi.Router) {
			// CSRF is checked before the session gate, which may rotate the token
			r.Use(middleware.CSRFProtection(deps.Sessions.CSRF(), deps.Logger))
			r.Use(auth.RequireSession(deps.Sessions, deps.Logger))

			r.Get(services.DashboardPath, authHandler.Dashboard)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(deps.Accounts, models.DefaultRole))
				r.Get("/admin/accounts", deps.AdminHandler.ListAccounts)
				r.Post("/admin/accounts/{id}/reset-attempts", deps.AdminHandler.ResetAttempts)
				r.Post("/admin/accounts/{id}/status", deps.AdminHandler.SetStatus)
			})
		})
	})
}
