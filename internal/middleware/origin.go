package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// OriginChecker reports whether a request's Origin header is acceptable.
// Requests without an Origin header are same-origin and pass.
type OriginChecker func(r *http.Request) bool

// NewOriginChecker builds an OriginChecker for the given allowed origins.
// Entries may be exact ("https://sharetaxi.in") or wildcard subdomains
// ("*.sharetaxi.in").
func NewOriginChecker(allowedOrigins []string) OriginChecker {
	originMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originMap[strings.ToLower(strings.TrimRight(origin, "/"))] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, originMap, allowedOrigins)
	}
}

// SameOrigin rejects state-changing requests from foreign origins.
// Session cookies are SameSite=Lax; this covers older browsers and
// same-site subdomains.
func SameOrigin(check OriginChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			if !check(r) {
				logger.Warn("cross-origin request blocked",
					slog.String("origin", r.Header.Get("Origin")),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed checks if the given origin is in the allowed list.
func isOriginAllowed(origin string, originMap map[string]bool, allowedOrigins []string) bool {
	// If no origins configured, deny all cross-origin requests
	if len(allowedOrigins) == 0 {
		return false
	}

	normalizedOrigin := strings.ToLower(origin)

	if originMap[normalizedOrigin] {
		return true
	}

	// Check for wildcard subdomain patterns like "*.example.com"
	for _, allowed := range allowedOrigins {
		if strings.HasPrefix(allowed, "*.") {
			suffix := strings.ToLower(strings.TrimPrefix(allowed, "*"))
			if strings.HasSuffix(normalizedOrigin, suffix) {
				// "*.example.com" matches "sub.example.com" but not "notexample.com"
				prefix := strings.TrimSuffix(normalizedOrigin, suffix)
				scheme, sub, ok := strings.Cut(prefix, "://")
				if ok && scheme != "" && sub != "" {
					return true
				}
			}
		}
	}

	return false
}
