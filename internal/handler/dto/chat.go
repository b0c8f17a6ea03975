// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/sharetaxi/sharetaxi/internal/format"
	"github.com/sharetaxi/sharetaxi/internal/model"
)

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	Body string `json:"body"`
}

// MessageResponse represents a chat message in API responses.
type MessageResponse struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	SenderID         string    `json:"sender_id"`
	Body             string    `json:"body"`
	CreatedAt        time.Time `json:"created_at"`
	CreatedAtDisplay string    `json:"created_at_display"`
}

// MessageListResponse represents a page of messages, oldest first.
type MessageListResponse struct {
	Data       []MessageResponse `json:"data"`
	Pagination *Pagination       `json:"pagination"`
}

// Pagination provides cursor-based pagination info.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToMessageResponse converts a Message model to MessageResponse DTO.
func ToMessageResponse(m *model.Message) MessageResponse {
	return MessageResponse{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		SenderID:         m.SenderID,
		Body:             m.Body,
		CreatedAt:        m.CreatedAt,
		CreatedAtDisplay: format.Date(m.CreatedAt),
	}
}

// ToMessageListResponse converts a page of messages and its next cursor.
func ToMessageListResponse(messages []*model.Message, nextCursor string) *MessageListResponse {
	data := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		data = append(data, ToMessageResponse(m))
	}
	return &MessageListResponse{
		Data: data,
		Pagination: &Pagination{
			NextCursor: nextCursor,
			HasMore:    nextCursor != "",
		},
	}
}
