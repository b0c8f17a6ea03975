// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
	"time"
)

// Service errors.
var (
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrInvalidOTP           = errors.New("invalid verification code")
	ErrOTPExpired           = errors.New("verification code expired or not requested")
	ErrOTPAttemptsExceeded  = errors.New("too many verification attempts")
	ErrOTPRateLimited       = errors.New("too many verification codes requested")
	ErrOTPDeliveryFailed    = errors.New("could not deliver verification code")
	ErrNoSession            = errors.New("no active session")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a participant in this conversation")
	ErrEmptyMessage         = errors.New("message body is empty")
	ErrMessageTooLong       = errors.New("message body too long")
	ErrInvalidFullName      = errors.New("invalid full name")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidCursor        = errors.New("invalid pagination cursor")
)

// RateLimitError carries how long a caller must wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrOTPRateLimited, e.RetryAfter)
}

// Is makes errors.Is(err, ErrOTPRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrOTPRateLimited
}
