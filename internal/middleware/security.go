package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// SecurityConfig holds configuration for security headers.
type SecurityConfig struct {
	// IsDevelopment disables HSTS in dev environments.
	IsDevelopment bool
	// StaticPrefix marks embedded asset paths. They carry no personal data
	// and may be cached; every other response is no-store.
	StaticPrefix string
	// StaticMaxAge is the max-age in seconds for assets under StaticPrefix.
	StaticMaxAge int
}

// ContentSecurityPolicy is applied to every response.
const ContentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:; " +
	"connect-src 'self'; form-action 'self'; base-uri 'self'; frame-ancestors 'none'"

const hstsValue = "max-age=31536000; includeSubDomains; preload"

// Security returns a middleware that applies security headers to all responses.
// It should be applied early in the chain.
//
// Pages render phone numbers and chat history, so they are never cached.
// Only assets under cfg.StaticPrefix get a public Cache-Control.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	cacheStatic := "public, max-age=" + strconv.Itoa(cfg.StaticMaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			// "0" disables the legacy filter; CSP replaces it.
			h.Set("X-XSS-Protection", "0")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// Chat uses a same-origin websocket, covered by connect-src 'self'.
			h.Set("Content-Security-Policy", ContentSecurityPolicy)
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")

			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", hstsValue)
			}

			if cfg.StaticPrefix != "" && cfg.StaticMaxAge > 0 && strings.HasPrefix(r.URL.Path, cfg.StaticPrefix) {
				h.Set("Cache-Control", cacheStatic)
			} else {
				h.Set("Cache-Control", "no-store")
			}

			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize returns a middleware that limits request body size.
//
// When the limit is exceeded, the connection is closed and subsequent
// reads return an error.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
