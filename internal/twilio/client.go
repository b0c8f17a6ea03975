// Package twilio is a minimal client for the Twilio Verify and Messages APIs.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/httpclient"
)

// Default API hosts.
const (
	DefaultBaseURL       = "https://api.twilio.com"
	DefaultVerifyBaseURL = "https://verify.twilio.com"
)

// ErrVerificationNotFound is returned when no pending verification exists
// (expired, already approved, or too many attempts).
var ErrVerificationNotFound = errors.New("verification not found")

// Config holds Twilio credentials.
type Config struct {
	AccountSID       string
	AuthToken        string
	VerifyServiceSID string
	FromNumber       string
	BaseURL          string
	VerifyBaseURL    string
	// MaxAttempts bounds retries on 429 and 503. Defaults to DefaultMaxAttempts.
	MaxAttempts int
}

// Client calls Twilio with basic auth.
type Client struct {
	cfg         Config
	http        *http.Client
	maxAttempts int
	retryDelays []time.Duration
}

// New creates a Client. If httpClient is nil the shared outbound client is used.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VerifyBaseURL == "" {
		cfg.VerifyBaseURL = DefaultVerifyBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.VerifyBaseURL = strings.TrimRight(cfg.VerifyBaseURL, "/")
	if httpClient == nil {
		httpClient = httpclient.New()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		cfg:         cfg,
		http:        httpClient,
		maxAttempts: maxAttempts,
		retryDelays: defaultRetryDelays,
	}
}

// APIError is an error response from Twilio.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio: HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// StartVerification sends a Verify SMS code to phone.
func (c *Client) StartVerification(ctx context.Context, phone string) error {
	endpoint := fmt.Sprintf("%s/v2/Services/%s/Verifications", c.cfg.VerifyBaseURL, c.cfg.VerifyServiceSID)
	form := url.Values{"To": {phone}, "Channel": {"sms"}}

	return c.post(ctx, endpoint, form, nil)
}

// CheckVerification reports whether code is the pending Verify code for phone.
func (c *Client) CheckVerification(ctx context.Context, phone, code string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v2/Services/%s/VerificationCheck", c.cfg.VerifyBaseURL, c.cfg.VerifyServiceSID)
	form := url.Values{"To": {phone}, "Code": {code}}

	var out struct {
		Status string `json:"status"`
	}
	if err := c.post(ctx, endpoint, form, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return false, ErrVerificationNotFound
		}
		return false, err
	}

	return out.Status == "approved", nil
}

// SendSMS sends a plain text message from the configured number.
func (c *Client) SendSMS(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	form := url.Values{"To": {to}, "From": {c.cfg.FromNumber}, "Body": {body}}

	return c.post(ctx, endpoint, form, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, out any) error {
	return c.withRetry(ctx, func() error {
		return c.postOnce(ctx, endpoint, form, out)
	})
}

func (c *Client) postOnce(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httpclient.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
