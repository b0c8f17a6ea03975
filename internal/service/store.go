package service

import (
	"context"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/cache"
	"github.com/sharetaxi/sharetaxi/internal/model"
)

// UserStore is the user persistence the services need.
// Implemented by *repository.Repository.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id, fullName, email string) (*model.User, error)
}

// AuthSessionStore persists local login sessions.
// Implemented by *repository.Repository.
type AuthSessionStore interface {
	CreateAuthSession(ctx context.Context, s *model.AuthSession) error
	GetActiveAuthSessionsByPrefix(ctx context.Context, prefix string) ([]*model.AuthSession, error)
	RevokeAuthSession(ctx context.Context, id string) error
}

// ChatStore persists conversations and messages.
// Implemented by *repository.Repository.
type ChatStore interface {
	GetConversationByID(ctx context.Context, id string) (*model.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string, limit int) ([]*model.Conversation, error)
	CreateMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]*model.Message, string, error)
	LastMessages(ctx context.Context, conversationIDs []string) (map[string]string, error)
	GetUserStats(ctx context.Context, userID string) (*model.UserStats, error)
}

// SessionCache caches resolved session users.
// Implemented by *cache.Cache.
type SessionCache interface {
	GetSessionUser(ctx context.Context, cacheKey string) (*model.User, string, error)
	SetSessionUser(ctx context.Context, cacheKey, sessionID string, user *model.User) error
	DeleteSessionUser(ctx context.Context, cacheKey string) error
	DeleteUserSessions(ctx context.Context, userID string) error
}

// OTPStore holds pending OTPs and per-phone send limits.
// Implemented by *cache.Cache.
type OTPStore interface {
	CheckOTPSendLimit(ctx context.Context, phone string, limit int, window time.Duration) (*cache.RateLimitResult, error)
	SetOTP(ctx context.Context, phone, hash string, ttl time.Duration) error
	GetOTP(ctx context.Context, phone string) (*cache.StoredOTP, error)
	IncrementOTPAttempts(ctx context.Context, phone string) (int, error)
	DeleteOTP(ctx context.Context, phone string) error
}

// ChatPublisher fans new messages out to live subscribers.
// Implemented by *cache.Cache.
type ChatPublisher interface {
	PublishChatMessage(ctx context.Context, conversationID string, payload []byte) error
}
