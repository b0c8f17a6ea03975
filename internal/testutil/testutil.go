// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 917091

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every table by running the down migrations in reverse
// and then clears the migration ledger. Callers re-apply with Migrate.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	all, err := migrations.All()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for i := len(all) - 1; i >= 0; i-- {
		if _, err := pool.Exec(ctx, all[i].Down); err != nil {
			return fmt.Errorf("apply down migration %s: %w", all[i].Version, err)
		}
	}

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

var seq atomic.Int64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// UniquePhone generates a unique +91 phone number for tests.
func UniquePhone() string {
	n := (time.Now().UnixNano() + seq.Add(1)) % 1_000_000_000
	return fmt.Sprintf("+919%09d", n)
}

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, fullName string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		ID:        UniqueID("user"),
		Phone:     UniquePhone(),
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestConversation creates a conversation between two users.
func NewTestConversation(t testing.TB, a, b *model.User) *model.Conversation {
	t.Helper()
	return &model.Conversation{
		ID:             UniqueID("conv"),
		ParticipantIDs: []string{a.ID, b.ID},
		RideLabel:      "Koramangala → Airport",
		FareEstimate:   1200,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewTestMessage creates a message in c from sender.
func NewTestMessage(t testing.TB, c *model.Conversation, sender *model.User, body string) *model.Message {
	t.Helper()
	return &model.Message{
		ID:             UniqueID("msg"),
		ConversationID: c.ID,
		SenderID:       sender.ID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
}
