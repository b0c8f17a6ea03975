package model

import "time"

// MaxMessageLength is the longest message body accepted, in characters.
const MaxMessageLength = 2000

// Message is a single chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsFrom reports whether the message was sent by userID.
func (m *Message) IsFrom(userID string) bool {
	return m.SenderID == userID
}

// UserStats aggregates a user's chat activity for the analytics page.
type UserStats struct {
	Conversations    int64
	MessagesSent     int64
	MessagesReceived int64
	TotalFare        int64
	LastActivity     *time.Time
}

// EstimatedSavings is the rider's share saved by splitting every ride.
func (s UserStats) EstimatedSavings() float64 {
	return float64(s.TotalFare) / 2
}
