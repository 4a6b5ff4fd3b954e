package middleware

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/attendly/internal/auth"
	pkghttp "github.com/BradenHooton/attendly/pkg/http"
)

// CSRFFormField and CSRFHeader are where state-changing requests carry the token.
const (
	CSRFFormField = "csrf_token"
	CSRFHeader    = "X-CSRF-Token"
)

// CSRFProtection rejects state-changing requests whose token does not match
// the one stored in the session. It must run after auth.LoadSession and
// before anything that rotates the session.
func CSRFProtection(guard *auth.CSRFGuard, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(CSRFHeader)
			if token == "" {
				token = r.PostFormValue(CSRFFormField)
			}

			sess := auth.SessionFromContext(r.Context())
			if !guard.Verify(sess, token) {
				logger.Warn("CSRF validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("token_present", token != ""),
				)
				pkghttp.WriteError(w, http.StatusForbidden, "csrf_invalid", "Invalid or missing CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
