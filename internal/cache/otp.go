package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// otpKeyPrefix is the Redis key prefix for stored one-time passwords.
const otpKeyPrefix = "otp:"

// StoredOTP is a hashed OTP awaiting verification.
type StoredOTP struct {
	Hash     string
	Attempts int
}

// SetOTP stores the hash of a freshly issued OTP, replacing any previous one
// and resetting the attempt counter.
func (c *Cache) SetOTP(ctx context.Context, phone, hash string, ttl time.Duration) error {
	key := otpKeyPrefix + hashKey(phone)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "hash", hash, "attempts", 0)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// GetOTP returns the stored OTP for phone.
// Returns ErrCacheMiss if none is pending or it expired.
func (c *Cache) GetOTP(ctx context.Context, phone string) (*StoredOTP, error) {
	result, err := c.client.HGetAll(ctx, otpKeyPrefix+hashKey(phone)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(result) == 0 || result["hash"] == "" {
		return nil, ErrCacheMiss
	}

	attempts, _ := strconv.Atoi(result["attempts"])
	return &StoredOTP{Hash: result["hash"], Attempts: attempts}, nil
}

// incrementAttemptsScript bumps the attempt counter only while the OTP
// exists. A bare HINCRBY on an expired key would recreate it without a TTL.
// Returns -1 when the key is gone.
var incrementAttemptsScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// IncrementOTPAttempts records a verification attempt and returns the new count.
// Returns ErrCacheMiss if the OTP expired or was consumed.
func (c *Cache) IncrementOTPAttempts(ctx context.Context, phone string) (int, error) {
	n, err := incrementAttemptsScript.Run(ctx, c.client, []string{otpKeyPrefix + hashKey(phone)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis increment attempts failed: %w", err)
	}
	if n < 0 {
		return 0, ErrCacheMiss
	}
	return int(n), nil
}

// DeleteOTP removes the pending OTP for phone.
func (c *Cache) DeleteOTP(ctx context.Context, phone string) error {
	return c.client.Del(ctx, otpKeyPrefix+hashKey(phone)).Err()
}
