// Package authclient talks to a GoTrue-compatible hosted auth provider.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/httpclient"
	"github.com/sharetaxi/sharetaxi/internal/model"
)

// Sentinel errors for provider calls.
var (
	ErrMissingToken = errors.New("missing access token")
	ErrUnauthorized = errors.New("access token rejected")
	ErrInvalidOTP   = errors.New("otp rejected by provider")
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4096

// Client is a GoTrue API client.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
}

// New creates a Client. If httpClient is nil the shared outbound client is used.
func New(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpclient.New()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    httpClient,
	}
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth provider: HTTP %d: %s", e.StatusCode, e.Message)
}

// providerUser is the user object returned by GoTrue.
type providerUser struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

func (u *providerUser) toModel() *model.User {
	phone := u.Phone
	// GoTrue stores phones without the leading plus.
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return &model.User{
		ID:        u.ID,
		Phone:     phone,
		Email:     u.Email,
		FullName:  u.UserMetadata.FullName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// GetUser returns the user behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	var u providerUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &u); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if u.ID == "" {
		return nil, nil
	}

	return u.toModel(), nil
}

// SendOTP asks the provider to text a one-time code to phone.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	body := map[string]any{"phone": phone, "create_user": true}
	return c.do(ctx, http.MethodPost, "/auth/v1/otp", "", body, nil)
}

// VerifyOTP exchanges a phone code for a provider session.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (*model.LoginResult, error) {
	body := map[string]string{"phone": phone, "token": code, "type": "sms"}

	var out struct {
		AccessToken string       `json:"access_token"`
		ExpiresIn   int          `json:"expires_in"`
		User        providerUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", "", body, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, ErrInvalidOTP
	}

	return &model.LoginResult{
		Token:     out.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
		User:      out.User.toModel(),
	}, nil
}

// Logout revokes the provider session behind accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readErrorMessage extracts a message from GoTrue's error shapes.
func readErrorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var e struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(data, &e) == nil {
		for _, m := range []string{e.Msg, e.Message, e.ErrorDescription} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(data))
}
