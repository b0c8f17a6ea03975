package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/model"
)

type chatFixture struct {
	svc       *ChatService
	repo      *fakeRepo
	publisher *fakePublisher
	rec       *metrics.InMemoryRecorder
	alice     *model.User
	bob       *model.User
	conv      *model.Conversation
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	repo := newFakeRepo()
	alice := repo.addUser(&model.User{ID: "alice", Phone: "+919876543210", FullName: "Alice Dsouza"})
	bob := repo.addUser(&model.User{ID: "bob", Phone: "+919812345678", FullName: "Bob Menon"})
	conv := repo.addConversation(&model.Conversation{
		ID:             "conv-1",
		ParticipantIDs: []string{alice.ID, bob.ID},
		RideLabel:      "Indiranagar → Airport",
		FareEstimate:   1500,
		CreatedAt:      time.Now().Add(-time.Hour),
	})

	publisher := &fakePublisher{}
	rec := metrics.NewInMemory()

	return &chatFixture{
		svc:       NewChatService(repo, repo, publisher, nil, rec),
		repo:      repo,
		publisher: publisher,
		rec:       rec,
		alice:     alice,
		bob:       bob,
		conv:      conv,
	}
}

func TestChatService_GetConversation(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	detail, err := f.svc.GetConversation(context.Background(), f.conv.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}

	want := model.ParticipantSummary{ID: "bob", Name: "Bob Menon", Phone: "+91 98123 45678", Initials: "BM"}
	if detail.Other != want {
		t.Errorf("Other = %+v, want %+v", detail.Other, want)
	}
	if detail.Conversation.ID != f.conv.ID {
		t.Errorf("Conversation.ID = %s", detail.Conversation.ID)
	}
}

func TestChatService_GetConversation_NotFound(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		convID string
		userID string
	}{
		{"missing conversation", "nope", f.alice.ID},
		{"empty id", "", f.alice.ID},
		{"not a participant", f.conv.ID, "mallory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.GetConversation(ctx, tt.convID, tt.userID); !errors.Is(err, ErrConversationNotFound) {
				t.Errorf("error = %v, want ErrConversationNotFound", err)
			}
			if _, err := f.svc.GetMessages(ctx, tt.convID, tt.userID); !errors.Is(err, ErrConversationNotFound) {
				t.Errorf("GetMessages error = %v, want ErrConversationNotFound", err)
			}
		})
	}
}

func TestChatService_GetConversation_DeletedParticipant(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	f.repo.addConversation(&model.Conversation{ID: "conv-2", ParticipantIDs: []string{f.alice.ID, "ghost"}})

	detail, err := f.svc.GetConversation(context.Background(), "conv-2", f.alice.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if detail.Other.Name != "Unknown rider" || detail.Other.Initials != "?" {
		t.Errorf("Other = %+v, want placeholder", detail.Other)
	}
}

func TestChatService_SendMessage(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	ctx := context.Background()

	msg, err := f.svc.SendMessage(ctx, f.conv.ID, f.alice.ID, "  leaving at 6?  ")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.Body != "leaving at 6?" || msg.SenderID != f.alice.ID || msg.ID == "" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if f.conv.LastMessageAt == nil {
		t.Error("conversation last_message_at should be bumped")
	}

	payloads := f.publisher.payloads[f.conv.ID]
	if len(payloads) != 1 {
		t.Fatalf("published %d payloads, want 1", len(payloads))
	}
	var published model.Message
	if err := json.Unmarshal(payloads[0], &published); err != nil {
		t.Fatalf("payload is not a message: %v", err)
	}
	if published.ID != msg.ID {
		t.Errorf("published ID = %s, want %s", published.ID, msg.ID)
	}
	if f.rec.Snapshot().MessagesSent != 1 {
		t.Error("sent message should be counted")
	}

	messages, err := f.svc.GetMessages(ctx, f.conv.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != msg.ID {
		t.Errorf("GetMessages = %v", messages)
	}
}

func TestChatService_SendMessage_Rejects(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		convID  string
		userID  string
		body    string
		wantErr error
	}{
		{"empty", f.conv.ID, f.alice.ID, "   ", ErrEmptyMessage},
		{"too long", f.conv.ID, f.alice.ID, strings.Repeat("x", 2001), ErrMessageTooLong},
		{"outsider", f.conv.ID, "mallory", "hi", ErrConversationNotFound},
		{"missing", "nope", f.alice.ID, "hi", ErrConversationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.SendMessage(ctx, tt.convID, tt.userID, tt.body); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if len(f.repo.messages) != 0 {
		t.Errorf("rejected messages were stored: %d", len(f.repo.messages))
	}
}

func TestChatService_SendMessage_PublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	f.publisher.err = errBoom

	if _, err := f.svc.SendMessage(context.Background(), f.conv.ID, f.bob.ID, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(f.repo.messages) != 1 {
		t.Error("message should be stored even if publish fails")
	}
}

func TestChatService_ListConversations(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, f.conv.ID, f.bob.ID, "see you at the gate"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	previews, err := f.svc.ListConversations(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(previews) != 1 {
		t.Fatalf("got %d previews, want 1", len(previews))
	}
	if previews[0].Other.ID != f.bob.ID || previews[0].LastMessage != "see you at the gate" {
		t.Errorf("unexpected preview: %+v", previews[0])
	}

	empty, err := f.svc.ListConversations(ctx, "loner")
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", empty)
	}
}

func TestChatService_IsParticipant(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	ctx := context.Background()

	if ok, err := f.svc.IsParticipant(ctx, f.conv.ID, f.bob.ID); !ok || err != nil {
		t.Errorf("bob: %v, %v", ok, err)
	}
	if ok, err := f.svc.IsParticipant(ctx, f.conv.ID, "mallory"); ok || err != nil {
		t.Errorf("mallory: %v, %v", ok, err)
	}

	f.repo.convErr = errBoom
	if _, err := f.svc.IsParticipant(ctx, f.conv.ID, f.bob.ID); !errors.Is(err, errBoom) {
		t.Errorf("store failure error = %v", err)
	}
}

func TestChatService_GetMessagesPage_InvalidCursor(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	_, _, err := f.svc.GetMessagesPage(context.Background(), f.conv.ID, f.alice.ID, "garbage")
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("GetMessagesPage error = %v, want ErrInvalidCursor", err)
	}
}
