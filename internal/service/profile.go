package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/repository"
)

// SessionInvalidator drops cached session users after a profile change.
// Implemented by *cache.Cache.
type SessionInvalidator interface {
	DeleteUserSessions(ctx context.Context, userID string) error
}

// ProfileService reads and updates the signed-in user's profile and stats.
type ProfileService struct {
	users    UserStore
	chats    ChatStore
	sessions SessionInvalidator
	logger   *slog.Logger
}

// NewProfileService creates a new ProfileService. sessions may be nil when
// session users are not cached.
func NewProfileService(users UserStore, chats ChatStore, sessions SessionInvalidator, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		users:    users,
		chats:    chats,
		sessions: sessions,
		logger:   logger,
	}
}

// GetProfile returns the user record behind a session.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

// UpdateProfile validates and saves the editable profile fields.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID, fullName, email string) (*model.User, error) {
	fullName, err := ValidateFullName(fullName)
	if err != nil {
		return nil, err
	}
	email, err = ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpdateUserProfile(ctx, userID, fullName, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	// The header reads the cached session user; stale entries would show
	// the old name until SessionCacheTTL.
	if s.sessions != nil {
		if err := s.sessions.DeleteUserSessions(ctx, userID); err != nil {
			s.logger.Warn("session cache invalidation failed", "user_id", userID, "error", err)
		}
	}
	return user, nil
}

// GetStats returns the analytics summary for userID.
func (s *ProfileService) GetStats(ctx context.Context, userID string) (*model.UserStats, error) {
	stats, err := s.chats.GetUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}
