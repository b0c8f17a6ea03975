package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/sharetaxi/sharetaxi/internal/model"
)

// Common errors for conversation repository operations.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidCursor        = errors.New("invalid pagination cursor")
)

const conversationColumns = `id, participant_ids, ride_label, fare_estimate, created_at, last_message_at`

// PaginationCursor represents decoded cursor for pagination.
type PaginationCursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateConversation inserts a new conversation.
func (r *Repository) CreateConversation(ctx context.Context, c *model.Conversation) error {
	query := `
		INSERT INTO conversations (id, participant_ids, ride_label, fare_estimate, created_at, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		pq.Array(c.ParticipantIDs),
		c.RideLabel,
		c.FareEstimate,
		c.CreatedAt,
		c.LastMessageAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

// GetConversationByID retrieves a conversation by its ID.
func (r *Repository) GetConversationByID(ctx context.Context, id string) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	c, err := scanConversation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return c, nil
}

// FindConversationBetween returns the conversation shared by two users.
func (r *Repository) FindConversationBetween(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant_ids @> $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	c, err := scanConversation(r.pool.QueryRow(ctx, query, pq.Array([]string{userA, userB})))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	return c, nil
}

// ListConversationsForUser returns the user's conversations, most recently
// active first.
func (r *Repository) ListConversationsForUser(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE $1 = ANY(participant_ids)
		ORDER BY COALESCE(last_message_at, created_at) DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// CreateMessage inserts a message and bumps the conversation's
// last_message_at in a single transaction.
func (r *Repository) CreateMessage(ctx context.Context, m *model.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
		WHERE id = $1
	`, m.ConversationID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.ConversationID, m.SenderID, m.Body, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	return nil
}

// ListMessages returns up to limit messages of a conversation in
// chronological order. The cursor pages backwards in time: pass the returned
// cursor to fetch the messages preceding this page.
func (r *Repository) ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]*model.Message, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1
	`
	args := []any{conversationID}
	argIndex := 2

	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating messages: %w", err)
	}

	var nextCursor string
	if len(messages) > limit {
		messages = messages[:limit]
		oldest := messages[len(messages)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: oldest.ID, CreatedAt: oldest.CreatedAt})
	}

	// Newest-first from the query; the chat window wants oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nextCursor, nil
}

// LastMessages returns the most recent message body per conversation.
func (r *Repository) LastMessages(ctx context.Context, conversationIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT DISTINCT ON (conversation_id) conversation_id, body
		FROM messages
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, pq.Array(conversationIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get last messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan last message: %w", err)
		}
		result[id] = body
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating last messages: %w", err)
	}

	return result, nil
}

// GetUserStats aggregates chat activity for a user.
func (r *Repository) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(c.fare_estimate), 0),
			MAX(COALESCE(c.last_message_at, c.created_at)),
			COALESCE((SELECT COUNT(*) FROM messages m
				JOIN conversations mc ON mc.id = m.conversation_id
				WHERE $1 = ANY(mc.participant_ids) AND m.sender_id = $1), 0),
			COALESCE((SELECT COUNT(*) FROM messages m
				JOIN conversations mc ON mc.id = m.conversation_id
				WHERE $1 = ANY(mc.participant_ids) AND m.sender_id <> $1), 0)
		FROM conversations c
		WHERE $1 = ANY(c.participant_ids)
	`

	var stats model.UserStats
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&stats.Conversations,
		&stats.TotalFare,
		&stats.LastActivity,
		&stats.MessagesSent,
		&stats.MessagesReceived,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return &stats, nil
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var c model.Conversation
	var participants []string

	err := row.Scan(
		&c.ID,
		pq.Array(&participants),
		&c.RideLabel,
		&c.FareEstimate,
		&c.CreatedAt,
		&c.LastMessageAt,
	)
	if err != nil {
		return nil, err
	}

	c.ParticipantIDs = participants
	return &c, nil
}

func encodeCursor(c *PaginationCursor) string {
	data, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(data)
}

func decodeCursor(cursor string) (*PaginationCursor, error) {
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}

	var c PaginationCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		return nil, ErrInvalidCursor
	}

	return &c, nil
}
