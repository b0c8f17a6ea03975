package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/repository"
)

const (
	// MessagePageSize is how many messages the chat window loads at once.
	MessagePageSize = 50
	// ConversationListLimit caps the chat list.
	ConversationListLimit = 50
)

// ChatService handles conversations and messages.
type ChatService struct {
	chats     ChatStore
	users     UserStore
	publisher ChatPublisher
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// NewChatService creates a new ChatService. publisher may be nil.
func NewChatService(chats ChatStore, users UserStore, publisher ChatPublisher, logger *slog.Logger, recorder metrics.Recorder) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ChatService{
		chats:     chats,
		users:     users,
		publisher: publisher,
		logger:    logger,
		metrics:   recorder,
	}
}

// GetConversation returns the conversation and the other participant.
// Conversations the user is not part of are reported as not found.
func (s *ChatService) GetConversation(ctx context.Context, conversationID, userID string) (*model.ConversationDetail, error) {
	conv, err := s.memberConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	var other *model.User
	if otherID := conv.OtherParticipantID(userID); otherID != "" {
		other, err = s.users.GetUserByID(ctx, otherID)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("load participant: %w", err)
		}
	}

	return &model.ConversationDetail{
		Conversation: conv,
		Other:        model.NewParticipantSummary(other),
	}, nil
}

// GetMessages returns the latest page of messages, oldest first.
func (s *ChatService) GetMessages(ctx context.Context, conversationID, userID string) ([]*model.Message, error) {
	messages, _, err := s.GetMessagesPage(ctx, conversationID, userID, "")
	return messages, err
}

// GetMessagesPage returns a page of messages older than cursor, oldest
// first, plus the cursor for the next older page ("" when exhausted).
func (s *ChatService) GetMessagesPage(ctx context.Context, conversationID, userID, cursor string) ([]*model.Message, string, error) {
	if _, err := s.memberConversation(ctx, conversationID, userID); err != nil {
		return nil, "", err
	}

	messages, next, err := s.chats.ListMessages(ctx, conversationID, cursor, MessagePageSize)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, "", ErrInvalidCursor
		}
		return nil, "", fmt.Errorf("list messages: %w", err)
	}

	return messages, next, nil
}

// ListConversations returns the user's conversations, most recent first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]*model.ConversationPreview, error) {
	convs, err := s.chats.ListConversationsForUser(ctx, userID, ConversationListLimit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(convs) == 0 {
		return []*model.ConversationPreview{}, nil
	}

	ids := make([]string, 0, len(convs))
	otherIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
		if other := c.OtherParticipantID(userID); other != "" {
			otherIDs = append(otherIDs, other)
		}
	}

	users, err := s.users.GetUsersByIDs(ctx, otherIDs)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	last, err := s.chats.LastMessages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load last messages: %w", err)
	}

	previews := make([]*model.ConversationPreview, 0, len(convs))
	for _, c := range convs {
		previews = append(previews, &model.ConversationPreview{
			Conversation: c,
			Other:        model.NewParticipantSummary(users[c.OtherParticipantID(userID)]),
			LastMessage:  last[c.ID],
		})
	}
	return previews, nil
}

// SendMessage stores a message from userID and publishes it to live
// subscribers. Publishing is best effort.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, userID, body string) (*model.Message, error) {
	body, err := ValidateMessageBody(body)
	if err != nil {
		return nil, err
	}
	if _, err := s.memberConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       userID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.metrics.IncMessageSent()
	s.publish(ctx, msg)

	return msg, nil
}

func (s *ChatService) publish(ctx context.Context, msg *model.Message) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to encode message for publish", "message_id", msg.ID, "error", err)
		return
	}
	if err := s.publisher.PublishChatMessage(ctx, msg.ConversationID, payload); err != nil {
		s.logger.Warn("failed to publish message", "conversation_id", msg.ConversationID, "error", err)
	}
}

// IsParticipant reports whether userID may read conversationID.
func (s *ChatService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	_, err := s.memberConversation(ctx, conversationID, userID)
	if errors.Is(err, ErrConversationNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *ChatService) memberConversation(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, ErrConversationNotFound
	}
	conv, err := s.chats.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}
