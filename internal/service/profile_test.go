package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/model"
)

func TestProfileService_UpdateProfile(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.addUser(&model.User{ID: "u1", Phone: "+919876543210"})
	svc := NewProfileService(repo, repo, nil, nil)
	ctx := context.Background()

	user, err := svc.UpdateProfile(ctx, "u1", "  Asha   Rao ", "Asha@Example.in")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if user.FullName != "Asha Rao" || user.Email != "asha@example.in" {
		t.Errorf("unexpected user: %+v", user)
	}

	if _, err := svc.UpdateProfile(ctx, "u1", "Asha", "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("error = %v, want ErrInvalidEmail", err)
	}
	if _, err := svc.UpdateProfile(ctx, "missing", "Asha", ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
	if _, err := svc.GetProfile(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetProfile error = %v, want ErrUserNotFound", err)
	}
}

func TestProfileService_UpdateProfileDropsCachedSessions(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.addUser(&model.User{ID: "u1", Phone: "+919876543210", FullName: "Asha"})
	sessions := newFakeSessionCache()
	ctx := context.Background()

	_ = sessions.SetSessionUser(ctx, "k1", "s1", &model.User{ID: "u1", FullName: "Asha"})
	_ = sessions.SetSessionUser(ctx, "k2", "s2", &model.User{ID: "u1", FullName: "Asha"})
	_ = sessions.SetSessionUser(ctx, "k3", "s3", &model.User{ID: "u2", FullName: "Ravi"})

	svc := NewProfileService(repo, repo, sessions, nil)
	if _, err := svc.UpdateProfile(ctx, "u1", "Asha Rao", ""); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	for _, key := range []string{"k1", "k2"} {
		if _, _, err := sessions.GetSessionUser(ctx, key); err == nil {
			t.Errorf("session %s still cached after profile change", key)
		}
	}
	if _, _, err := sessions.GetSessionUser(ctx, "k3"); err != nil {
		t.Errorf("other user's session was dropped: %v", err)
	}

	// A failed update leaves the cache alone.
	_ = sessions.SetSessionUser(ctx, "k1", "s1", &model.User{ID: "u1", FullName: "Asha Rao"})
	if _, err := svc.UpdateProfile(ctx, "u1", "Asha", "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("error = %v, want ErrInvalidEmail", err)
	}
	if _, _, err := sessions.GetSessionUser(ctx, "k1"); err != nil {
		t.Errorf("invalid update dropped the cache: %v", err)
	}
}

func TestProfileService_GetStats(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.addConversation(&model.Conversation{ID: "c1", ParticipantIDs: []string{"u1", "u2"}, FareEstimate: 1200})
	repo.addConversation(&model.Conversation{ID: "c2", ParticipantIDs: []string{"u1", "u3"}, FareEstimate: 800})
	now := time.Now()
	repo.messages = []*model.Message{
		{ID: "m1", ConversationID: "c1", SenderID: "u1", Body: "hi", CreatedAt: now},
		{ID: "m2", ConversationID: "c1", SenderID: "u2", Body: "hey", CreatedAt: now},
		{ID: "m3", ConversationID: "c2", SenderID: "u3", Body: "yo", CreatedAt: now},
	}

	stats, err := NewProfileService(repo, repo, nil, nil).GetStats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Conversations != 2 || stats.MessagesSent != 1 || stats.MessagesReceived != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.EstimatedSavings() != 1000 {
		t.Errorf("EstimatedSavings = %v, want 1000", stats.EstimatedSavings())
	}
}
