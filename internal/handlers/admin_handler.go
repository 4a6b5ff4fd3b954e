package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/BradenHooton/attendly/internal/auth"
	"github.com/BradenHooton/attendly/internal/models"
	pkghttp "github.com/BradenHooton/attendly/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface defines the administrative account operations.
type AdminServiceInterface interface {
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	ResetLoginAttempts(ctx context.Context, actor models.CurrentSession, accountID string) error
	SetActive(ctx context.Context, actor models.CurrentSession, accountID string, active bool) error
}

// AdminHandler handles account administration HTTP requests.
type AdminHandler struct {
	service            AdminServiceInterface
	maxAccountAttempts int
}

// NewAdminHandler creates a new AdminHandler. maxAccountAttempts is the
// durable lock threshold used to report whether an account is locked.
func NewAdminHandler(service AdminServiceInterface, maxAccountAttempts int) *AdminHandler {
	return &AdminHandler{service: service, maxAccountAttempts: maxAccountAttempts}
}

// AccountResponse is the administrative view of an account
type AccountResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	IsActive      bool   `json:"is_active"`
	LoginAttempts int    `json:"login_attempts"`
	Locked        bool   `json:"locked"`
}

// ListAccountsResponse wraps a page of accounts
type ListAccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// ListAccounts handles GET /admin/accounts
// Accepts optional query params ?limit=N (1–100, default 50) and ?offset=N.
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	accounts, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve accounts")
		return
	}

	resp := ListAccountsResponse{
		Accounts: make([]AccountResponse, 0, len(accounts)),
		Limit:    limit,
		Offset:   offset,
	}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, AccountResponse{
			ID:            a.ID,
			Username:      a.Username,
			Role:          a.Role,
			IsActive:      a.IsActive,
			LoginAttempts: a.LoginAttempts,
			Locked:        a.IsLocked(h.maxAccountAttempts),
		})
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ResetAttempts handles POST /admin/accounts/{id}/reset-attempts
func (h *AdminHandler) ResetAttempts(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.CurrentSession(r.Context())
	if !ok {
		pkghttp.WriteError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}

	if err := h.service.ResetLoginAttempts(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeAdminError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Login attempts reset"})
}

// SetStatus handles POST /admin/accounts/{id}/status with form field active=true|false
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.CurrentSession(r.Context())
	if !ok {
		pkghttp.WriteError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}

	active, err := strconv.ParseBool(r.PostFormValue("active"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "active must be true or false")
		return
	}

	if err := h.service.SetActive(r.Context(), actor, chi.URLParam(r, "id"), active); err != nil {
		writeAdminError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"is_active": active})
}

func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteError(w, http.StatusForbidden, "forbidden", models.UserMessage(err))
	default:
		pkghttp.WriteInternalError(w, models.UserMessage(err))
	}
}
