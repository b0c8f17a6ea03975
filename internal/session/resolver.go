// Package session resolves the current user's session from request cookies.
package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/model"
)

// Provider looks up the user behind an access token.
// An empty token is passed through; the provider decides what it means.
type Provider interface {
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
}

// Options controls which cookies the resolver reads.
type Options struct {
	SessionCookie string
	MockCookie    string
	MockEnabled   bool
}

// Resolver maps request cookies to a Session.
type Resolver struct {
	provider Provider
	opts     Options
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewResolver creates a Resolver.
func NewResolver(provider Provider, opts Options, logger *slog.Logger, recorder metrics.Recorder) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Resolver{
		provider: provider,
		opts:     opts,
		logger:   logger,
		metrics:  recorder,
	}
}

// Resolve returns the session for the given cookies, or nil.
//
// A present mock cookie wins over everything else when mock mode is on.
// Otherwise the session cookie value (possibly empty) goes to the provider;
// a provider error or a nil user yields nil. Resolve never retries.
func (r *Resolver) Resolve(ctx context.Context, cookies []*http.Cookie) *model.Session {
	if r.opts.MockEnabled && hasCookie(cookies, r.opts.MockCookie) {
		r.metrics.IncSessionResolved(metrics.SourceMock)
		return model.NewMockSession()
	}

	token := cookieValue(cookies, r.opts.SessionCookie)

	user, err := r.provider.GetUser(ctx, token)
	if err != nil {
		r.logger.Debug("session lookup failed", "error", err)
		r.metrics.IncSessionResolved(metrics.SourceNone)
		return nil
	}
	if user == nil {
		r.metrics.IncSessionResolved(metrics.SourceNone)
		return nil
	}

	r.metrics.IncSessionResolved(metrics.SourceProvider)
	return model.SessionFromUser(user)
}

// ResolveRequest resolves the session for an incoming request.
func (r *Resolver) ResolveRequest(req *http.Request) *model.Session {
	return r.Resolve(req.Context(), req.Cookies())
}

func hasCookie(cookies []*http.Cookie, name string) bool {
	if name == "" {
		return false
	}
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
