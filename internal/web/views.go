package web

import (
	"time"

	"github.com/sharetaxi/sharetaxi/internal/model"
)

// LoginView backs the phone form.
type LoginView struct {
	Phone       string
	DemoEnabled bool
}

// VerifyView backs the code form. Phone is already normalized.
type VerifyView struct {
	Phone string
}

// ChatListView backs the conversation list.
type ChatListView struct {
	Conversations []*model.ConversationPreview
}

// ChatView backs a single chat window.
type ChatView struct {
	Conversation  *model.Conversation
	Other         model.ParticipantSummary
	Messages      []*model.Message
	CurrentUserID string
}

// ProfileView backs the profile page.
type ProfileView struct {
	Name        string
	Initials    string
	Phone       string
	Email       string
	MemberSince time.Time
}

// SettingsView backs the settings form.
type SettingsView struct {
	FullName string
	Email    string
}
