package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharetaxi/sharetaxi/internal/model"
)

const (
	// sessionCachePrefix is the Redis key prefix for resolved session users.
	sessionCachePrefix = "session:user:"
	// sessionIndexPrefix keys the set of cache keys held for one user.
	sessionIndexPrefix = "session:index:"
	// SessionCacheTTL bounds how long a revoked session may still resolve.
	SessionCacheTTL = 5 * time.Minute
)

// ErrCacheMiss is returned when a key is not present.
var ErrCacheMiss = errors.New("cache miss")

// cachedUser represents a session user stored in Redis.
type cachedUser struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	SessionID string    `json:"session_id"`
}

// GetSessionUser retrieves the user a session token resolved to.
// cacheKey must be a hash of the token, never the token itself.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetSessionUser(ctx context.Context, cacheKey string) (*model.User, string, error) {
	data, err := c.client.Get(ctx, sessionCachePrefix+cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", ErrCacheMiss
		}
		return nil, "", fmt.Errorf("redis get failed: %w", err)
	}

	var cached cachedUser
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, "", ErrCacheMiss
	}

	return &model.User{
		ID:        cached.ID,
		Phone:     cached.Phone,
		Email:     cached.Email,
		FullName:  cached.FullName,
		CreatedAt: cached.CreatedAt,
	}, cached.SessionID, nil
}

// SetSessionUser caches the user behind a session token.
func (c *Cache) SetSessionUser(ctx context.Context, cacheKey, sessionID string, user *model.User) error {
	data, err := json.Marshal(cachedUser{
		ID:        user.ID,
		Phone:     user.Phone,
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("marshal session user: %w", err)
	}

	index := sessionIndexPrefix + user.ID

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, sessionCachePrefix+cacheKey, data, SessionCacheTTL)
	pipe.SAdd(ctx, index, cacheKey)
	pipe.Expire(ctx, index, SessionCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// DeleteSessionUser removes one cached session. Used on logout.
func (c *Cache) DeleteSessionUser(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, sessionCachePrefix+cacheKey).Err()
}

// deleteUserSessionsScript drops every cached session listed in a user's
// index, then the index itself. Returns the number of entries listed.
var deleteUserSessionsScript = redis.NewScript(`
local keys = redis.call("SMEMBERS", KEYS[1])
for _, k in ipairs(keys) do
	redis.call("DEL", ARGV[1] .. k)
end
redis.call("DEL", KEYS[1])
return #keys
`)

// DeleteUserSessions removes every cached session of userID so the next
// request reloads the user from the database. Sessions stay valid.
// Used when a profile changes.
func (c *Cache) DeleteUserSessions(ctx context.Context, userID string) error {
	err := deleteUserSessionsScript.Run(ctx, c.client, []string{sessionIndexPrefix + userID}, sessionCachePrefix).Err()
	if err != nil {
		return fmt.Errorf("redis delete user sessions failed: %w", err)
	}
	return nil
}
