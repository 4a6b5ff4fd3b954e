package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/attendly/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// RateLimitByIP limits requests per client IP. Forwarding headers are only
// trusted from the configured proxies. onLimit renders the rejection; nil
// falls back to a 429 JSON body.
func RateLimitByIP(config RateLimitConfig, onLimit http.HandlerFunc) func(next http.Handler) http.Handler {
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
		}
	}

	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(onLimit),
	)
}
