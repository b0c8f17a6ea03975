package middleware

import (
	"log/slog"
	"net/http"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/model"
)

// DefaultLoginPath is where unauthenticated visitors are sent.
const DefaultLoginPath = "/login"

// SessionResolver resolves the session for a request.
// Implemented by *session.Resolver.
type SessionResolver interface {
	ResolveRequest(r *http.Request) *model.Session
}

// GuardConfig holds configuration for RequireSession.
type GuardConfig struct {
	Resolver SessionResolver
	// RedirectTo is the redirect target when there is no session.
	// Defaults to DefaultLoginPath.
	RedirectTo string
	Logger     *slog.Logger
	Metrics    metrics.Recorder
}

// RequireSession returns a middleware that only lets requests with a
// session through. Without one it answers 302 Found to RedirectTo and
// writes nothing else; with one it stores the session in the request
// context and calls next unchanged.
func RequireSession(cfg GuardConfig) func(http.Handler) http.Handler {
	redirectTo := cfg.RedirectTo
	if redirectTo == "" {
		redirectTo = DefaultLoginPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := cfg.Resolver.ResolveRequest(r)
			if s == nil {
				logger.Debug("no session, redirecting",
					slog.String("path", r.URL.Path),
					slog.String("redirect_to", redirectTo),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncGuardRedirect()
				w.Header().Set("Location", redirectTo)
				w.WriteHeader(http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(r.Context(), s)))
		})
	}
}

// OptionalSession stores the session in the context when there is one and
// always calls next. Used by public pages that change for signed-in users.
func OptionalSession(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s := resolver.ResolveRequest(r); s != nil {
				r = r.WithContext(auth.ContextWithSession(r.Context(), s))
			}
			next.ServeHTTP(w, r)
		})
	}
}
