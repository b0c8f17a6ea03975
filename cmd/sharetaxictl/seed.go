package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/sharetaxi/sharetaxi/internal/config"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo users and conversations",
	Long: `Creates the demo account used by mock sessions plus two co-riders with
one conversation each. Running it again is safe: existing users are matched by
phone and existing conversations are left alone.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

// seedStore is the subset of *repository.Repository used for seeding.
type seedStore interface {
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
	FindConversationBetween(ctx context.Context, userA, userB string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) error
	CreateMessage(ctx context.Context, m *model.Message) error
}

type demoRide struct {
	rider    model.User
	label    string
	fare     int64
	messages []string
}

var demoRides = []demoRide{
	{
		rider:    model.User{Phone: "+919812345678", FullName: "Priya Sharma", Email: "priya@example.in"},
		label:    "Koramangala to Kempegowda Airport",
		fare:     1200,
		messages: []string{"Hi! Are you still leaving at 6?", "Yes, meet at the Forum Mall gate."},
	},
	{
		rider:    model.User{Phone: "+919823456789", FullName: "Rahul Verma"},
		label:    "Andheri East to Pune Station",
		fare:     2400,
		messages: []string{"Can we split the toll as well?"},
	},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	created, err := seedDemo(ctx, repo, time.Now().UTC(), logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d new conversation(s); demo user is %s\n", created, model.MockUserPhone)
	return nil
}

// seedDemo creates the demo data and returns how many conversations were
// created. Messages are only added to conversations created by this call.
func seedDemo(ctx context.Context, store seedStore, now time.Time, logger *slog.Logger) (int, error) {
	demo, err := store.GetOrCreateUser(ctx, &model.User{
		ID:       model.MockUserID,
		Phone:    model.MockUserPhone,
		Email:    model.MockUserEmail,
		FullName: "Demo Rider",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create demo user: %w", err)
	}
	if demo.ID != model.MockUserID {
		logger.Warn("demo phone belongs to another user, mock sessions will not see seeded chats",
			"user_id", demo.ID,
		)
	}

	created := 0
	for i, ride := range demoRides {
		rider := ride.rider
		rider.ID = ulid.Make().String()
		other, err := store.GetOrCreateUser(ctx, &rider)
		if err != nil {
			return created, fmt.Errorf("failed to create %s: %w", ride.rider.FullName, err)
		}

		_, err = store.FindConversationBetween(ctx, demo.ID, other.ID)
		if err == nil {
			logger.Debug("conversation exists", "with", other.FullName)
			continue
		}
		if !errors.Is(err, repository.ErrConversationNotFound) {
			return created, err
		}

		startedAt := now.Add(-time.Duration(len(demoRides)-i) * time.Hour)
		conv := &model.Conversation{
			ID:             ulid.Make().String(),
			ParticipantIDs: []string{demo.ID, other.ID},
			RideLabel:      ride.label,
			FareEstimate:   ride.fare,
			CreatedAt:      startedAt,
		}
		if err := store.CreateConversation(ctx, conv); err != nil {
			return created, err
		}
		created++

		// Riders alternate, starting with the co-rider.
		for j, body := range ride.messages {
			sender := other.ID
			if j%2 == 1 {
				sender = demo.ID
			}
			msg := &model.Message{
				ID:             ulid.Make().String(),
				ConversationID: conv.ID,
				SenderID:       sender,
				Body:           body,
				CreatedAt:      startedAt.Add(time.Duration(j+1) * time.Minute),
			}
			if err := store.CreateMessage(ctx, msg); err != nil {
				return created, err
			}
		}

		logger.Info("conversation created", "conversation_id", conv.ID, "with", other.FullName)
	}

	return created, nil
}
