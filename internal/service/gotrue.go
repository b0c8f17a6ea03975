package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/authclient"
	"github.com/sharetaxi/sharetaxi/internal/model"
)

// GoTrueClient is the hosted auth API used when AUTH_PROVIDER=gotrue.
// Implemented by *authclient.Client.
type GoTrueClient interface {
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*model.LoginResult, error)
	Logout(ctx context.Context, accessToken string) error
}

// GoTrueAuth runs the login flow against a hosted provider. The provider
// owns OTPs and sessions; chats and profiles belong to a local user row
// matched by phone, whose ID is the one sessions carry.
type GoTrueAuth struct {
	client GoTrueClient
	users  UserStore
	logger *slog.Logger
}

// NewGoTrueAuth creates a new GoTrueAuth.
func NewGoTrueAuth(client GoTrueClient, users UserStore, logger *slog.Logger) *GoTrueAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoTrueAuth{client: client, users: users, logger: logger}
}

// SendOTP asks the provider to text a code to the normalized phone.
func (g *GoTrueAuth) SendOTP(ctx context.Context, rawPhone string) (string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}

	if err := g.client.SendOTP(ctx, phone); err != nil {
		var apiErr *authclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", &RateLimitError{}
		}
		g.logger.Error("provider otp send failed", "phone", MaskPhone(phone), "error", err)
		return "", fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
	}
	return phone, nil
}

// VerifyOTP exchanges the code for a provider session.
func (g *GoTrueAuth) VerifyOTP(ctx context.Context, rawPhone, code string) (*model.LoginResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	if !auth.ValidOTPFormat(code) {
		return nil, ErrInvalidOTP
	}

	result, err := g.client.VerifyOTP(ctx, phone, code)
	if err != nil {
		if errors.Is(err, authclient.ErrInvalidOTP) {
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("provider verify: %w", err)
	}

	if result.User.Phone == "" {
		result.User.Phone = phone
	}
	user, err := g.localUser(ctx, result.User)
	if err != nil {
		return nil, err
	}
	result.User = user

	return result, nil
}

// GetUser resolves a provider access token to the local user with the same
// phone. A phone that was registered before the provider was enabled keeps
// its existing ID.
func (g *GoTrueAuth) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	providerUser, err := g.client.GetUser(ctx, accessToken)
	if err != nil || providerUser == nil {
		return nil, err
	}
	if providerUser.Phone == "" {
		return nil, fmt.Errorf("provider user %s has no phone", providerUser.ID)
	}
	return g.localUser(ctx, providerUser)
}

func (g *GoTrueAuth) localUser(ctx context.Context, providerUser *model.User) (*model.User, error) {
	candidate := *providerUser
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now().UTC()
		candidate.UpdatedAt = candidate.CreatedAt
	}

	user, err := g.users.GetOrCreateUser(ctx, &candidate)
	if err != nil {
		return nil, fmt.Errorf("sync local user: %w", err)
	}
	if user.ID != providerUser.ID {
		g.logger.Debug("provider user mapped to existing local user", "local_id", user.ID, "provider_id", providerUser.ID)
	}
	if user.Email == "" && providerUser.Email != "" {
		mapped := *user
		mapped.Email = providerUser.Email
		return &mapped, nil
	}
	return user, nil
}

// Logout revokes the provider session.
func (g *GoTrueAuth) Logout(ctx context.Context, token string) error {
	return g.client.Logout(ctx, token)
}
