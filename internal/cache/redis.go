// Package cache provides the Redis layer: session and OTP storage, rate
// limits, and chat pub/sub.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options size the Redis connection pool.
//
// Every open chat websocket holds a dedicated pub/sub connection for its
// lifetime, outside the command pool. MaxStreams bounds those separately
// so live streams cannot starve session lookups.
type Options struct {
	// PoolSize is the number of pooled connections for commands.
	PoolSize int
	// MinIdleConns keeps warm connections for the session lookup path.
	MinIdleConns int
	// MaxStreams caps concurrent pub/sub subscribers. Zero means no cap.
	MaxStreams int
}

// DefaultOptions returns the pool sizing used when nothing is configured.
func DefaultOptions() Options {
	return Options{PoolSize: 20, MinIdleConns: 4, MaxStreams: 500}
}

// Cache provides Redis cache access methods.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	applyOptions(opt, opts)

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// applyOptions copies pool sizing onto opt. Non-positive fields fall back
// to DefaultOptions.
func applyOptions(opt *redis.Options, opts Options) {
	def := DefaultOptions()
	if opts.PoolSize <= 0 {
		opts.PoolSize = def.PoolSize
	}
	if opts.MinIdleConns < 0 {
		opts.MinIdleConns = def.MinIdleConns
	}
	if opts.MinIdleConns > opts.PoolSize {
		opts.MinIdleConns = opts.PoolSize
	}

	opt.PoolSize = opts.PoolSize
	opt.MinIdleConns = opts.MinIdleConns
	if opts.MaxStreams > 0 {
		opt.MaxActiveConns = opts.PoolSize + opts.MaxStreams
	}
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
