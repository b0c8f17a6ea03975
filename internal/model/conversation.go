package model

import (
	"slices"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/format"
)

// Conversation is a chat thread between two matched riders.
type Conversation struct {
	ID             string     `json:"id"`
	ParticipantIDs []string   `json:"participant_ids"`
	RideLabel      string     `json:"ride_label"`
	FareEstimate   int64      `json:"fare_estimate"`
	CreatedAt      time.Time  `json:"created_at"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.ParticipantIDs, userID)
}

// OtherParticipantID returns the first participant that is not userID.
// Returns "" when there is none.
func (c *Conversation) OtherParticipantID(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// LastActivity is the last message time, or creation time if no messages.
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// ParticipantSummary describes the other party in a chat window.
type ParticipantSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Initials string `json:"initials"`
}

// NewParticipantSummary builds a summary for u.
// A nil user yields a placeholder so the chat window can still render.
func NewParticipantSummary(u *User) ParticipantSummary {
	if u == nil {
		return ParticipantSummary{Name: "Unknown rider", Initials: "?"}
	}
	name := u.DisplayName()
	initials := format.Initials(u.FullName)
	if initials == "" {
		initials = "?"
	}
	return ParticipantSummary{
		ID:       u.ID,
		Name:     name,
		Phone:    format.PhoneNumber(u.Phone),
		Initials: initials,
	}
}

// ConversationPreview is a conversation plus what the chat list shows.
type ConversationPreview struct {
	Conversation *Conversation
	Other        ParticipantSummary
	LastMessage  string
}

// ConversationDetail is a conversation as seen by one participant.
type ConversationDetail struct {
	Conversation *Conversation
	Other        ParticipantSummary
}
