package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/cache"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/repository"
)

// AuthService is the local auth provider: phone OTP login with opaque
// session tokens stored hashed in PostgreSQL and cached in Redis.
type AuthService struct {
	users    UserStore
	sessions AuthSessionStore
	cache    SessionCache
	otp      *OTPService
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, sessions AuthSessionStore, sessionCache SessionCache, otp *OTPService, ttl time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cache:    sessionCache,
		otp:      otp,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// SendOTP starts a phone login.
func (s *AuthService) SendOTP(ctx context.Context, rawPhone string) (string, error) {
	return s.otp.SendOTP(ctx, rawPhone)
}

// VerifyOTP completes a phone login and issues a session token.
// First-time phones get a new user record.
func (s *AuthService) VerifyOTP(ctx context.Context, rawPhone, code string) (*model.LoginResult, error) {
	phone, err := s.otp.VerifyOTP(ctx, rawPhone, code)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user, err := s.users.GetOrCreateUser(ctx, &model.User{
		ID:        ulid.Make().String(),
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	session := &model.AuthSession{
		ID:          ulid.Make().String(),
		UserID:      user.ID,
		TokenPrefix: token.Prefix,
		TokenHash:   token.Hash,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}
	if err := s.sessions.CreateAuthSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "session_id", session.ID)

	return &model.LoginResult{
		Token:     token.Plaintext,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	}, nil
}

// GetUser resolves a session token to its user. It implements session.Provider.
func (s *AuthService) GetUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	cacheKey := auth.QuickHash(token)
	if user, _, err := s.cache.GetSessionUser(ctx, cacheKey); err == nil {
		return user, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("session cache read failed", "error", err)
	}

	session, err := s.findSession(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}

	if err := s.cache.SetSessionUser(ctx, cacheKey, session.ID, user); err != nil {
		s.logger.Warn("session cache write failed", "error", err)
	}

	return user, nil
}

// Logout revokes the session behind token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.cache.DeleteSessionUser(ctx, auth.QuickHash(token)); err != nil {
		s.logger.Warn("session cache delete failed", "error", err)
	}

	session, err := s.findSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}

	if err := s.sessions.RevokeAuthSession(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrAuthSessionNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}

	s.logger.Info("user logged out", "user_id", session.UserID, "session_id", session.ID)
	return nil
}

// findSession looks up active sessions by token prefix and checks each hash.
func (s *AuthService) findSession(ctx context.Context, token string) (*model.AuthSession, error) {
	prefix, err := auth.ParseSessionToken(token)
	if err != nil {
		return nil, ErrNoSession
	}

	candidates, err := s.sessions.GetActiveAuthSessionsByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup sessions: %w", err)
	}

	now := s.now()
	for _, candidate := range candidates {
		if !candidate.IsActive(now) {
			continue
		}
		ok, err := auth.VerifySecret(token, candidate.TokenHash)
		if err != nil {
			s.logger.Warn("bad session hash", "session_id", candidate.ID, "error", err)
			continue
		}
		if ok {
			return candidate, nil
		}
	}

	return nil, ErrNoSession
}
