package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sharetaxi/sharetaxi/internal/model"
)

// ErrAuthSessionNotFound is returned when no active session matches.
var ErrAuthSessionNotFound = errors.New("auth session not found")

const authSessionColumns = `id, user_id, token_prefix, token_hash, expires_at, revoked_at, created_at`

// CreateAuthSession inserts a newly issued login session.
func (r *Repository) CreateAuthSession(ctx context.Context, s *model.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (id, user_id, token_prefix, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.TokenPrefix,
		s.TokenHash,
		s.ExpiresAt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth session: %w", err)
	}

	return nil
}

// GetActiveAuthSessionsByPrefix returns unrevoked, unexpired sessions with the
// given token prefix. Several may match; callers verify the hash of each.
func (r *Repository) GetActiveAuthSessionsByPrefix(ctx context.Context, prefix string) ([]*model.AuthSession, error) {
	query := `
		SELECT ` + authSessionColumns + `
		FROM auth_sessions
		WHERE token_prefix = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth sessions by prefix: %w", err)
	}
	defer rows.Close()

	var sessions []*model.AuthSession
	for rows.Next() {
		s, err := scanAuthSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auth session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth sessions: %w", err)
	}

	return sessions, nil
}

// RevokeAuthSession marks a session as revoked.
func (r *Repository) RevokeAuthSession(ctx context.Context, id string) error {
	query := `
		UPDATE auth_sessions
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke auth session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAuthSessionNotFound
	}

	return nil
}

// DeleteExpiredAuthSessions removes sessions that expired before cutoff.
func (r *Repository) DeleteExpiredAuthSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired auth sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanAuthSession(row pgx.Row) (*model.AuthSession, error) {
	var s model.AuthSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TokenPrefix,
		&s.TokenHash,
		&s.ExpiresAt,
		&s.RevokedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
