// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Auth provider names.
const (
	AuthProviderLocal  = "local"
	AuthProviderGoTrue = "gotrue"
)

// ErrMockInProduction is returned when mock sessions are enabled in production.
var ErrMockInProduction = errors.New("MOCK_SESSION_ENABLED must not be set in production")

// ErrNoSMSProvider is returned when production has no way to deliver OTPs.
var ErrNoSMSProvider = errors.New("production requires TWILIO_VERIFY_SERVICE_SID or TWILIO_FROM_NUMBER")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Cache (Redis). Each open chat stream holds one pub/sub connection
	// on top of the command pool; REDIS_MAX_STREAMS bounds them.
	RedisURL          string `env:"REDIS_URL,required,notEmpty"`
	RedisPoolSize     int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	RedisMinIdleConns int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"4"`
	RedisMaxStreams   int    `env:"REDIS_MAX_STREAMS" envDefault:"500"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Sessions
	AuthProvider      string        `env:"AUTH_PROVIDER" envDefault:"local"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"sharetaxi_session"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// Demo mode: a cookie that substitutes a fixed user for real auth.
	MockSessionEnabled bool   `env:"MOCK_SESSION_ENABLED" envDefault:"false"`
	MockSessionCookie  string `env:"MOCK_SESSION_COOKIE" envDefault:"sharetaxi_mock_session"`

	// Managed auth provider (GoTrue-compatible)
	GoTrueURL     string `env:"GOTRUE_URL"`
	GoTrueAnonKey string `env:"GOTRUE_ANON_KEY"`

	// SMS / OTP
	TwilioAccountSID       string        `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken        string        `env:"TWILIO_AUTH_TOKEN"`
	TwilioVerifyServiceSID string        `env:"TWILIO_VERIFY_SERVICE_SID"`
	TwilioFromNumber       string        `env:"TWILIO_FROM_NUMBER"`
	TwilioBaseURL          string        `env:"TWILIO_BASE_URL" envDefault:"https://api.twilio.com"`
	TwilioVerifyBaseURL    string        `env:"TWILIO_VERIFY_BASE_URL" envDefault:"https://verify.twilio.com"`
	OTPTTL                 time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPMaxAttempts         int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPSendLimit           int           `env:"OTP_SEND_LIMIT" envDefault:"3"`
	OTPSendWindow          time.Duration `env:"OTP_SEND_WINDOW" envDefault:"10m"`

	// Rate limiting for the public login endpoints (per IP)
	RateLimitLoginEnabled bool `env:"RATE_LIMIT_LOGIN_ENABLED" envDefault:"true"`
	RateLimitLoginRPS     int  `env:"RATE_LIMIT_LOGIN_RPS" envDefault:"2"`
	RateLimitLoginBurst   int  `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"10"`

	// Comma-separated origins allowed to open chat websockets besides BASE_URL.
	WebSocketAllowedOrigins string `env:"WS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 64KB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// TwilioVerifyEnabled reports whether OTPs are delegated to Twilio Verify.
func (c *Config) TwilioVerifyEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioVerifyServiceSID != ""
}

// TwilioSMSEnabled reports whether stored OTPs can be delivered by SMS.
func (c *Config) TwilioSMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// GetWebSocketAllowedOrigins returns BASE_URL plus any extra configured origins.
func (c *Config) GetWebSocketAllowedOrigins() []string {
	result := []string{strings.TrimSuffix(c.BaseURL, "/")}
	if c.WebSocketAllowedOrigins == "" {
		return result
	}

	for _, origin := range strings.Split(c.WebSocketAllowedOrigins, ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints that env tags cannot express.
func (c *Config) Validate() error {
	if c.IsProduction() && c.MockSessionEnabled {
		return ErrMockInProduction
	}

	switch c.AuthProvider {
	case AuthProviderLocal:
		if c.IsProduction() && !c.TwilioVerifyEnabled() && !c.TwilioSMSEnabled() {
			return ErrNoSMSProvider
		}
	case AuthProviderGoTrue:
		if c.GoTrueURL == "" || c.GoTrueAnonKey == "" {
			return fmt.Errorf("AUTH_PROVIDER=gotrue requires GOTRUE_URL and GOTRUE_ANON_KEY")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be at least 1")
	}
	if c.OTPSendLimit < 1 || c.OTPSendWindow <= 0 {
		return fmt.Errorf("OTP_SEND_LIMIT and OTP_SEND_WINDOW must be positive")
	}
	if c.RedisPoolSize < 1 || c.RedisMinIdleConns < 0 || c.RedisMaxStreams < 0 {
		return fmt.Errorf("REDIS_POOL_SIZE must be at least 1; REDIS_MIN_IDLE_CONNS and REDIS_MAX_STREAMS must not be negative")
	}

	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
