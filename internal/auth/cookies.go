package auth

import (
	"net/http"

	pkghttp "github.com/BradenHooton/attendly/pkg/http"
)

// CookieConfig holds session cookie settings
type CookieConfig struct {
	Name        string
	Domain      string // Empty string = current host only
	ForceSecure bool   // Set Secure even when the request does not look encrypted
	IPConfig    *pkghttp.IPConfig
}

// SetSessionCookie writes the session identifier cookie.
// No Expires or MaxAge: the cookie lives for the browser session.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.Name,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		HttpOnly: true,
		Secure:   config.secure(r),
		SameSite: http.SameSiteStrictMode,
	})
}

// ExpireSessionCookie tells the browser to drop the session cookie now
func ExpireSessionCookie(w http.ResponseWriter, r *http.Request, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.Name,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.secure(r),
		SameSite: http.SameSiteStrictMode,
	})
}

// GetSessionCookie returns the session identifier the client presented
func GetSessionCookie(r *http.Request, config CookieConfig) (string, bool) {
	cookie, err := r.Cookie(config.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c CookieConfig) secure(r *http.Request) bool {
	return c.ForceSecure || pkghttp.IsEncrypted(r, c.IPConfig)
}
