package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/cache"
	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/twilio"
)

// VerifyProvider is a hosted OTP service that generates and checks codes.
// Implemented by *twilio.Client.
type VerifyProvider interface {
	StartVerification(ctx context.Context, phone string) error
	CheckVerification(ctx context.Context, phone, code string) (bool, error)
}

// SMSSender delivers a text message.
// Implemented by *twilio.Client and LogSMSSender.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// OTPConfig holds OTP limits.
type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	SendLimit   int
	SendWindow  time.Duration
}

// OTPService sends and verifies phone one-time passwords.
//
// With a VerifyProvider the provider owns the code. Without one a code is
// generated here, its argon2id hash stored in Redis, and the plaintext sent
// through the SMSSender.
type OTPService struct {
	store   OTPStore
	verify  VerifyProvider
	sms     SMSSender
	cfg     OTPConfig
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewOTPService creates a new OTPService. verify may be nil.
func NewOTPService(store OTPStore, verify VerifyProvider, sms SMSSender, cfg OTPConfig, logger *slog.Logger, recorder metrics.Recorder) *OTPService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &OTPService{
		store:   store,
		verify:  verify,
		sms:     sms,
		cfg:     cfg,
		logger:  logger,
		metrics: recorder,
	}
}

// SendOTP normalizes rawPhone, applies the per-phone send limit and sends a
// code. It returns the normalized phone.
func (s *OTPService) SendOTP(ctx context.Context, rawPhone string) (string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}

	if err := s.checkRateLimit(ctx, phone); err != nil {
		if errors.Is(err, ErrOTPRateLimited) {
			s.metrics.IncOTPSent(metrics.StatusRateLimited)
		}
		return "", err
	}

	if s.verify != nil {
		err = s.sendViaVerify(ctx, phone)
	} else {
		err = s.sendViaSMS(ctx, phone)
	}
	if err != nil {
		s.metrics.IncOTPSent(metrics.StatusFailed)
		s.logger.Error("otp send failed", "phone", MaskPhone(phone), "error", err)
		return "", fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
	}

	s.metrics.IncOTPSent(metrics.StatusSuccess)
	s.logger.Info("otp sent", "phone", MaskPhone(phone))
	return phone, nil
}

// VerifyOTP checks code for phone. A nil error means the code was accepted.
func (s *OTPService) VerifyOTP(ctx context.Context, rawPhone, code string) (string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}
	if !auth.ValidOTPFormat(code) {
		s.metrics.IncOTPVerified(metrics.StatusFailed)
		return "", ErrInvalidOTP
	}

	if s.verify != nil {
		err = s.verifyViaVerify(ctx, phone, code)
	} else {
		err = s.verifyStored(ctx, phone, code)
	}
	if err != nil {
		s.metrics.IncOTPVerified(metrics.StatusFailed)
		return "", err
	}

	s.metrics.IncOTPVerified(metrics.StatusSuccess)
	return phone, nil
}

// checkRateLimit fails closed: if Redis is down no code is sent.
func (s *OTPService) checkRateLimit(ctx context.Context, phone string) error {
	result, err := s.store.CheckOTPSendLimit(ctx, phone, s.cfg.SendLimit, s.cfg.SendWindow)
	if err != nil {
		return fmt.Errorf("check otp rate limit: %w", err)
	}
	if !result.Allowed {
		return &RateLimitError{RetryAfter: result.RetryAfter}
	}
	return nil
}

func (s *OTPService) sendViaVerify(ctx context.Context, phone string) error {
	return s.verify.StartVerification(ctx, phone)
}

func (s *OTPService) verifyViaVerify(ctx context.Context, phone, code string) error {
	approved, err := s.verify.CheckVerification(ctx, phone, code)
	if err != nil {
		if errors.Is(err, twilio.ErrVerificationNotFound) {
			return ErrOTPExpired
		}
		return fmt.Errorf("check verification: %w", err)
	}
	if !approved {
		return ErrInvalidOTP
	}
	return nil
}

func (s *OTPService) sendViaSMS(ctx context.Context, phone string) error {
	code, err := auth.GenerateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := auth.HashSecret(code, auth.OTPParams)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	if err := s.store.SetOTP(ctx, phone, hash, s.cfg.TTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	body := fmt.Sprintf("%s is your ShareTaxi verification code. It expires in %d minutes.", code, int(s.cfg.TTL.Minutes()))
	if err := s.sms.SendSMS(ctx, phone, body); err != nil {
		_ = s.store.DeleteOTP(ctx, phone)
		return err
	}
	return nil
}

// verifyStored enforces the attempt cap on the counter returned by the
// atomic increment, so concurrent guesses cannot all see a stale count.
func (s *OTPService) verifyStored(ctx context.Context, phone, code string) error {
	stored, err := s.store.GetOTP(ctx, phone)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return ErrOTPExpired
		}
		return fmt.Errorf("load otp: %w", err)
	}

	attempts, err := s.store.IncrementOTPAttempts(ctx, phone)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return ErrOTPExpired
		}
		return fmt.Errorf("record otp attempt: %w", err)
	}
	if attempts > s.cfg.MaxAttempts {
		_ = s.store.DeleteOTP(ctx, phone)
		return ErrOTPAttemptsExceeded
	}

	ok, err := auth.VerifySecret(code, stored.Hash)
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	if ok {
		if err := s.store.DeleteOTP(ctx, phone); err != nil {
			s.logger.Warn("failed to delete used otp", "phone", MaskPhone(phone), "error", err)
		}
		return nil
	}

	if attempts >= s.cfg.MaxAttempts {
		_ = s.store.DeleteOTP(ctx, phone)
		return ErrOTPAttemptsExceeded
	}
	return ErrInvalidOTP
}

// LogSMSSender writes messages to the log instead of sending them.
// Only for local development.
type LogSMSSender struct {
	Logger *slog.Logger
}

// SendSMS logs the message at debug level.
func (l LogSMSSender) SendSMS(ctx context.Context, to, body string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "sms not sent, no provider configured", "to", MaskPhone(to), "body", body)
	return nil
}
